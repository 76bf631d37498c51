package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
)

// OrderList shows the signed-in buyer's orders, newest first.
func OrderList(svc orders.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		list, err := svc.ListForBuyer(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "orders", map[string]any{"orders": list})
	}
}

// OrderConfirmation shows one order to its buyer or an admin.
func OrderConfirmation(svc orders.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			pages.fail(w, r, "/orders", err)
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		identity := middleware.IdentityFromContext(r.Context())
		order, err := svc.Confirmation(r.Context(), orderID, orders.Viewer{UserID: userID, IsAdmin: identity.IsAdmin})
		if err != nil {
			pages.fail(w, r, "/orders", err)
			return
		}
		pages.render(w, r, "order", order)
	}
}
