package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const quantityFieldPrefix = "qty_"

type addToCartRequest struct {
	Quantity int    `json:"quantity"`
	Next     string `json:"next,omitempty"`
}

type updateCartRequest struct {
	Quantities map[string]int `json:"quantities"`
}

// safeNext keeps form-supplied redirect targets on this site.
func safeNext(next, fallback string) string {
	next = strings.TrimSpace(next)
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return fallback
}

// CartView renders the cart with live prices and stock.
func CartView(svc cart.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.View(r.Context(), pages.cartRef(r))
		if err != nil {
			pages.fail(w, r, "/", err)
			return
		}
		pages.saveCart(w, r, view.Cart)
		pages.render(w, r, "cart", view)
	}
}

// CartSummary answers the header badge poll.
func CartSummary(svc cart.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totals, err := svc.Summary(r.Context(), pages.cartRef(r))
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}

// CartAdd adds a product, clamped to the stock left after what is already in the cart.
func CartAdd(svc cart.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/products", err)
			return
		}

		req := addToCartRequest{Quantity: 1}
		if validators.IsJSON(r) {
			if r.ContentLength != 0 {
				if err := validators.DecodeJSONBody(r, &req); err != nil {
					pages.fail(w, r, "/cart", err)
					return
				}
			}
		} else {
			form, err := validators.ParseForm(r)
			if err != nil {
				pages.fail(w, r, "/cart", err)
				return
			}
			req.Quantity = validators.FormInt(form.Get("quantity"), 1)
			req.Next = form.Get("next")
		}
		next := safeNext(req.Next, "/cart")

		result, err := svc.Add(r.Context(), pages.cartRef(r), productID, req.Quantity)
		if err != nil {
			pages.fail(w, r, next, err)
			return
		}
		pages.saveCart(w, r, result.Cart)
		if result.Added < result.Requested && !responses.WantsJSON(r) {
			pages.flash(w, r, responses.FlashWarning, result.Message)
			responses.Redirect(w, r, next)
			return
		}
		pages.done(w, r, next, result, result.Message)
	}
}

// CartUpdate sets quantities in bulk. Form posts carry one qty_<productId> field per line;
// zero or less removes the line.
func CartUpdate(svc cart.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := map[string]int{}
		if validators.IsJSON(r) {
			var req updateCartRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				pages.fail(w, r, "/cart", err)
				return
			}
			raw = req.Quantities
		} else {
			form, err := validators.ParseForm(r)
			if err != nil {
				pages.fail(w, r, "/cart", err)
				return
			}
			for key, values := range form {
				if !strings.HasPrefix(key, quantityFieldPrefix) || len(values) == 0 {
					continue
				}
				raw[strings.TrimPrefix(key, quantityFieldPrefix)] = validators.FormInt(values[0], 0)
			}
		}

		quantities := make(map[uuid.UUID]int, len(raw))
		for key, qty := range raw {
			id, err := uuid.Parse(strings.TrimSpace(key))
			if err != nil {
				pages.fail(w, r, "/cart", pkgerrors.New(pkgerrors.CodeValidation, "Unknown cart item.").
					WithDetails(map[string]any{"product_id": key}))
				return
			}
			quantities[id] = qty
		}

		result, err := svc.Update(r.Context(), pages.cartRef(r), quantities)
		if err != nil {
			pages.fail(w, r, "/cart", err)
			return
		}
		pages.saveCart(w, r, result.Cart)
		if !responses.WantsJSON(r) {
			for _, notice := range result.Notices {
				pages.flash(w, r, responses.FlashWarning, notice)
			}
		}
		pages.done(w, r, "/cart", result, "Cart updated.")
	}
}

// CartRemove drops one product from the cart.
func CartRemove(svc cart.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/cart", err)
			return
		}
		ref := pages.cartRef(r)
		updated, err := svc.Remove(r.Context(), ref, productID)
		if err != nil {
			pages.fail(w, r, "/cart", err)
			return
		}
		pages.saveCart(w, r, updated)
		totals, err := svc.Totals(r.Context(), updated)
		if err != nil {
			pages.fail(w, r, "/cart", err)
			return
		}
		pages.done(w, r, "/cart", totals, "Removed item.")
	}
}
