package controllers

import (
	"net/http"
	"net/url"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type checkoutRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required"`
}

// CheckoutPreview shows the cart as it will be ordered, with the buyer's saved details.
func CheckoutPreview(svc checkout.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preview, err := svc.Preview(r.Context(), pages.cartRef(r), viewerID(r))
		if err != nil {
			pages.fail(w, r, "/cart", err)
			return
		}
		pages.render(w, r, "checkout", preview)
	}
}

// CheckoutPlaceOrder turns the cart into an order. Stock problems come back as one message
// per cart line and leave the cart untouched.
func CheckoutPlaceOrder(svc checkout.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), pages.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Name = validators.SanitizeString(form.Get("name"), 200)
			req.Email = validators.SanitizeString(form.Get("email"), 254)
			req.Address = validators.SanitizeString(form.Get("address"), 1000)
		}); err != nil {
			pages.fail(w, r, "/checkout", err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
			Ref:             pages.cartRef(r),
			BuyerID:         viewerID(r),
			BuyerName:       req.Name,
			BuyerEmail:      req.Email,
			ShippingAddress: req.Address,
		})
		if err != nil {
			redirect := "/checkout"
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				redirect = "/cart"
			}
			pages.fail(w, r, redirect, err)
			return
		}
		if pages.Cookies != nil {
			pages.Cookies.ClearCart(w)
		}
		if responses.WantsJSON(r) {
			responses.WriteSuccessStatus(w, http.StatusCreated, order)
			return
		}
		pages.done(w, r, orderPath(order), order, "Order placed successfully!")
	}
}

func orderPath(order *orders.OrderDTO) string {
	return "/orders/" + order.ID.String()
}
