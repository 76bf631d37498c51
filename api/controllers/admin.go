package controllers

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/admin"
	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func AdminDashboard(svc admin.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "admin_dashboard", stats)
	}
}

// AdminReviews lists the moderation queue. status is pending (default), approved or all.
func AdminReviews(svc reviews.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := enums.ParseReviewFilter(r.URL.Query().Get("status"))
		if err != nil {
			pages.fail(w, r, "/admin/reviews", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Unknown review filter."))
			return
		}
		list, err := svc.AdminList(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "admin_reviews", map[string]any{"reviews": list, "status": filter})
	}
}

func AdminReviewApprove(svc reviews.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := responses.Back(r, "/admin/reviews")
		reviewID, err := validators.URLParamUUID(r, "reviewId")
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		review, err := svc.Approve(r.Context(), reviewID)
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		pages.done(w, r, back, review, "Review approved.")
	}
}

func AdminReviewReject(svc reviews.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := responses.Back(r, "/admin/reviews")
		reviewID, err := validators.URLParamUUID(r, "reviewId")
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		if err := svc.Reject(r.Context(), reviewID); err != nil {
			pages.fail(w, r, back, err)
			return
		}
		pages.done(w, r, back, map[string]any{"deleted": reviewID}, "Review rejected and deleted.")
	}
}

func AdminOrders(svc orders.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		list, err := svc.AdminList(r.Context(), pagination.Params{Page: page, Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "admin_orders", list)
	}
}

func AdminOrderDetail(svc orders.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			pages.fail(w, r, "/admin/orders", err)
			return
		}
		order, err := svc.AdminDetail(r.Context(), orderID)
		if err != nil {
			pages.fail(w, r, "/admin/orders", err)
			return
		}
		pages.render(w, r, "admin_order", order)
	}
}

// AdminOrdersExport downloads every order as a spreadsheet.
func AdminOrdersExport(svc orders.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := svc.ExportXLSX(r.Context(), &buf); err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="orders.xlsx"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

func AdminProducts(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.AdminList(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "admin_products", map[string]any{"products": list})
	}
}

type adminProductRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	PriceCents     *int64     `json:"price_cents"`
	Stock          *int       `json:"stock"`
	UnlimitedStock bool       `json:"unlimited_stock"`
	Category       *string    `json:"category"`
	Condition      *string    `json:"condition"`
	Location       *string    `json:"location"`
	ImageURL       *string    `json:"image_url"`
	SellerID       *uuid.UUID `json:"seller_id"`
}

func adminProductForm(form url.Values) (product.UpdateProductInput, error) {
	input := product.UpdateProductInput{
		Title:          validators.FormOptionalString(form, "title"),
		Description:    validators.FormOptionalString(form, "description"),
		UnlimitedStock: validators.IsChecked(form.Get("unlimited_stock")),
		Category:       validators.FormOptionalString(form, "category"),
		Condition:      validators.FormOptionalString(form, "condition"),
		Location:       validators.FormOptionalString(form, "location"),
		ImageURL:       validators.FormOptionalString(form, "image_url"),
	}
	var err error
	if input.PriceCents, err = validators.FormCents(form, "price"); err != nil {
		return input, err
	}
	if input.Stock, err = validators.FormOptionalInt(form, "stock"); err != nil {
		return input, err
	}
	if raw := strings.TrimSpace(form.Get("seller_id")); raw != "" {
		sellerID, err := uuid.Parse(raw)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "Unknown seller.")
		}
		input.SellerID = &sellerID
	}
	return input, nil
}

// AdminProductUpdate edits any listing. Fields left out of the request are unchanged.
func AdminProductUpdate(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/admin/products", err)
			return
		}

		var input product.UpdateProductInput
		if validators.IsJSON(r) {
			var req adminProductRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				pages.fail(w, r, "/admin/products", err)
				return
			}
			input = product.UpdateProductInput(req)
		} else {
			form, err := validators.ParseForm(r)
			if err != nil {
				pages.fail(w, r, "/admin/products", err)
				return
			}
			if input, err = adminProductForm(form); err != nil {
				pages.fail(w, r, "/admin/products", err)
				return
			}
		}

		updated, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			pages.fail(w, r, "/admin/products", err)
			return
		}
		pages.done(w, r, "/admin/products", updated, "Product updated.")
	}
}

func AdminProductDelete(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/admin/products", err)
			return
		}
		adminID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), productID, product.Actor{UserID: adminID, IsAdmin: true}); err != nil {
			pages.fail(w, r, "/admin/products", err)
			return
		}
		pages.done(w, r, "/admin/products", map[string]any{"deleted": productID}, "Product deleted.")
	}
}

// AdminConvertBoats turns fixed-price boat listings into seven-day auctions.
func AdminConvertBoats(svc auctions.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.ConvertBoats(r.Context())
		if err != nil {
			pages.fail(w, r, "/admin", err)
			return
		}
		pages.done(w, r, "/auctions?boat=1", result, result.Message)
	}
}

func AdminUsers(svc users.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "admin_users", map[string]any{"users": list})
	}
}

// AdminToggleAdmin flips the admin flag. Admins cannot demote themselves.
func AdminToggleAdmin(svc users.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.URLParamUUID(r, "userId")
		if err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}
		actorID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		updated, err := svc.ToggleAdmin(r.Context(), actorID, userID)
		if err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}
		pages.done(w, r, "/admin/users", updated, "User updated.")
	}
}

func AdminToggleSeller(svc users.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.URLParamUUID(r, "userId")
		if err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}
		updated, err := svc.ToggleSeller(r.Context(), userID)
		if err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}
		pages.done(w, r, "/admin/users", updated, "User updated.")
	}
}

type sellerDetailsRequest struct {
	BusinessName        *string  `json:"business_name"`
	BusinessDescription *string  `json:"business_description"`
	Rating              *float64 `json:"rating"`
	Location            *string  `json:"location"`
}

// AdminSellerDetails edits the seller profile fields of a user.
func AdminSellerDetails(svc users.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.URLParamUUID(r, "userId")
		if err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}

		var req sellerDetailsRequest
		if validators.IsJSON(r) {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				pages.fail(w, r, "/admin/users", err)
				return
			}
		} else {
			form, err := validators.ParseForm(r)
			if err != nil {
				pages.fail(w, r, "/admin/users", err)
				return
			}
			req.BusinessName = validators.FormOptionalString(form, "business_name")
			req.BusinessDescription = validators.FormOptionalString(form, "business_description")
			req.Location = validators.FormOptionalString(form, "location")
			if raw := strings.TrimSpace(form.Get("rating")); raw != "" {
				rating, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					pages.fail(w, r, "/admin/users", pkgerrors.New(pkgerrors.CodeValidation, "Rating must be a number."))
					return
				}
				req.Rating = &rating
			}
		}

		updated, err := svc.UpdateSellerDetails(r.Context(), userID, users.SellerDetailsInput(req))
		if err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}
		pages.done(w, r, "/admin/users", updated, "Seller details updated.")
	}
}

func AdminUserDelete(svc users.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.URLParamUUID(r, "userId")
		if err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}
		actorID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		if err := svc.Delete(r.Context(), actorID, userID); err != nil {
			pages.fail(w, r, "/admin/users", err)
			return
		}
		pages.done(w, r, "/admin/users", map[string]any{"deleted": userID}, "User deleted.")
	}
}

// AdminReports lists product reports. status filters by open, reviewed or dismissed.
func AdminReports(svc reports.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		list, err := svc.List(r.Context(), status)
		if err != nil {
			pages.fail(w, r, "/admin/reports", err)
			return
		}
		pages.render(w, r, "admin_reports", map[string]any{"reports": list, "status": status})
	}
}

type reportStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func AdminReportStatus(svc reports.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reportID, err := validators.URLParamUUID(r, "reportId")
		if err != nil {
			pages.fail(w, r, "/admin/reports", err)
			return
		}
		var req reportStatusRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Status = strings.TrimSpace(form.Get("status"))
		}); err != nil {
			pages.fail(w, r, "/admin/reports", err)
			return
		}
		if err := svc.Resolve(r.Context(), reportID, req.Status); err != nil {
			pages.fail(w, r, "/admin/reports", err)
			return
		}
		pages.done(w, r, "/admin/reports", map[string]any{"id": reportID, "status": req.Status}, "Report updated.")
	}
}
