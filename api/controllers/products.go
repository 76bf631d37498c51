package controllers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Home renders the landing page.
func Home(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		home, err := svc.Home(r.Context(), viewerID(r))
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "home", home)
	}
}

// ProductList handles GET /products with search, category, condition, price and sort filters.
func ProductList(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}

		q := r.URL.Query()
		search := q.Get("q")
		if search == "" {
			search = q.Get("search")
		}
		// an unknown condition filters nothing rather than failing the page
		condition, _ := enums.ParseProductCondition(q.Get("condition"))

		result, err := svc.List(r.Context(), product.ListProductsInput{
			Filters: product.ProductListFilters{
				Query:         strings.TrimSpace(search),
				Category:      strings.TrimSpace(q.Get("category")),
				Condition:     condition,
				PriceMinCents: validators.ParseQueryCents(r, "min_price"),
				PriceMaxCents: validators.ParseQueryCents(r, "max_price"),
				Sort:          enums.ParseProductSort(q.Get("sort")),
			},
			Pagination: pagination.Params{Page: page, Limit: limit},
		})
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "products", result)
	}
}

// ProductAutocomplete answers the search box. It always responds with JSON.
func ProductAutocomplete(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.Autocomplete(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}

// ProductDetail renders a product page and records the view.
func ProductDetail(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		viewer := viewerID(r)
		detail, err := svc.Detail(r.Context(), productID, viewer)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		if err := svc.RecordView(r.Context(), viewer, productID); err != nil && pages.Logger != nil {
			pages.Logger.Error(r.Context(), "record product view", err)
		}
		pages.render(w, r, "product", detail)
	}
}

type createProductRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	PriceCents        *int64 `json:"price_cents"`
	Stock             *int   `json:"stock"`
	Category          string `json:"category"`
	Condition         string `json:"condition"`
	Location          string `json:"location"`
	ImageURL          string `json:"image_url"`
	IsAuction         bool   `json:"is_auction"`
	StartingBidCents  *int64 `json:"starting_bid_cents"`
	DurationDays      int    `json:"duration_days"`
	ReservePriceCents *int64 `json:"reserve_price_cents"`
	BuyNowPriceCents  *int64 `json:"buy_now_price_cents"`
}

func (req createProductRequest) input() product.CreateProductInput {
	return product.CreateProductInput{
		Title:             req.Title,
		Description:       req.Description,
		PriceCents:        req.PriceCents,
		Stock:             req.Stock,
		Category:          req.Category,
		Condition:         req.Condition,
		Location:          req.Location,
		ImageURL:          req.ImageURL,
		IsAuction:         req.IsAuction,
		StartingBidCents:  req.StartingBidCents,
		DurationDays:      req.DurationDays,
		ReservePriceCents: req.ReservePriceCents,
		BuyNowPriceCents:  req.BuyNowPriceCents,
	}
}

// createProductForm reads the post-ad form. Money fields are entered in dollars.
func createProductForm(r *http.Request, form url.Values) (product.CreateProductInput, error) {
	input := product.CreateProductInput{
		Title:        form.Get("title"),
		Description:  form.Get("description"),
		Category:     form.Get("category"),
		Condition:    form.Get("condition"),
		Location:     form.Get("location"),
		ImageURL:     form.Get("image_url"),
		IsAuction:    validators.IsChecked(form.Get("is_auction")),
		DurationDays: validators.FormInt(form.Get("auction_duration"), product.DefaultAuctionDays),
	}
	var err error
	if input.PriceCents, err = validators.FormCents(form, "price"); err != nil {
		return input, err
	}
	if input.Stock, err = validators.FormOptionalInt(form, "stock"); err != nil {
		return input, err
	}
	if input.StartingBidCents, err = validators.FormCents(form, "starting_bid"); err != nil {
		return input, err
	}
	if input.ReservePriceCents, err = validators.FormCents(form, "reserve_price"); err != nil {
		return input, err
	}
	if input.BuyNowPriceCents, err = validators.FormCents(form, "buy_now_price"); err != nil {
		return input, err
	}
	if r.MultipartForm != nil {
		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			input.Image = &product.ImageUpload{Filename: header.Filename, Body: file}
		case !errors.Is(err, http.ErrMissingFile):
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Could not read the uploaded image.")
		}
	}
	return input, nil
}

// ProductCreate handles the post-ad form. Sellers and admins only.
func ProductCreate(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}

		var input product.CreateProductInput
		if validators.IsJSON(r) {
			var req createProductRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				pages.fail(w, r, "/my-listings", err)
				return
			}
			input = req.input()
		} else {
			form, err := validators.ParseForm(r)
			if err != nil {
				pages.fail(w, r, "/my-listings", err)
				return
			}
			input, err = createProductForm(r, form)
			if input.Image != nil {
				if closer, ok := input.Image.Body.(io.Closer); ok {
					defer closer.Close()
				}
			}
			if err != nil {
				pages.fail(w, r, "/my-listings", err)
				return
			}
		}

		result, err := svc.CreateProduct(r.Context(), sellerID, input)
		if err != nil {
			pages.fail(w, r, "/my-listings", err)
			return
		}
		if responses.WantsJSON(r) {
			responses.WriteSuccessStatus(w, http.StatusCreated, result)
			return
		}
		pages.done(w, r, "/products/"+result.Product.ID.String(), result, result.Message)
	}
}

// ProductDelete removes a listing. Owners may delete their own; admins any.
func ProductDelete(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/my-listings", err)
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		identity := middleware.IdentityFromContext(r.Context())
		actor := product.Actor{UserID: userID, IsAdmin: identity.IsAdmin}
		if err := svc.DeleteProduct(r.Context(), productID, actor); err != nil {
			pages.fail(w, r, responses.Back(r, "/my-listings"), err)
			return
		}
		pages.done(w, r, responses.Back(r, "/my-listings"), map[string]any{"deleted": productID}, "Product deleted.")
	}
}

// MyListings shows the signed-in seller's products.
func MyListings(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		listings, err := svc.ListBySeller(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "my_listings", map[string]any{"products": listings})
	}
}

// RecentlyViewed shows the signed-in user's view history, newest first.
func RecentlyViewed(svc product.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		items, err := svc.RecentlyViewed(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "recently_viewed", map[string]any{"products": items})
	}
}
