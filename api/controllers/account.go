package controllers

import (
	"net/http"
	"net/url"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/sellers"
	"github.com/angelmondragon/storefront-backend/internal/users"
)

// FavoriteList shows the signed-in user's saved products.
func FavoriteList(svc favorites.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		items, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "favorites", map[string]any{"favorites": items})
	}
}

func FavoriteAdd(svc favorites.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := responses.Back(r, "/favorites")
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		if err := svc.Add(r.Context(), userID, productID); err != nil {
			pages.fail(w, r, back, err)
			return
		}
		pages.done(w, r, back, map[string]any{"product_id": productID, "favorited": true}, "Added to favorites.")
	}
}

func FavoriteRemove(svc favorites.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := responses.Back(r, "/favorites")
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		if err := svc.Remove(r.Context(), userID, productID); err != nil {
			pages.fail(w, r, back, err)
			return
		}
		pages.done(w, r, back, map[string]any{"product_id": productID, "favorited": false}, "Removed from favorites.")
	}
}

// NotificationList shows notifications newest first. Viewing does not mark them read.
func NotificationList(svc notifications.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		items, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "notifications", map[string]any{"notifications": items})
	}
}

// NotificationUnread answers the header badge poll.
func NotificationUnread(svc notifications.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		count, err := svc.UnreadCount(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"unread": count})
	}
}

func NotificationMarkRead(svc notifications.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		marked, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			pages.fail(w, r, "/notifications", err)
			return
		}
		pages.done(w, r, "/notifications", map[string]int64{"marked": marked}, "")
	}
}

// AddressSuggestions serves the checkout address autocomplete.
func AddressSuggestions(svc addresses.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		suggestions, err := svc.Suggest(r.Context(), userID, r.URL.Query().Get("q"))
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, suggestions)
	}
}

// SellerProfile is the public storefront of one seller.
func SellerProfile(svc sellers.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.URLParamUUID(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		profile, err := svc.Profile(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "seller", profile)
	}
}

// SellerDashboard shows sales, listings and reviews for the signed-in seller.
func SellerDashboard(svc sellers.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		dashboard, err := svc.Dashboard(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "dashboard", dashboard)
	}
}

// Settings shows the account settings form.
func Settings(svc users.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		profile, err := svc.Profile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "settings", profile)
	}
}

// SettingsUpdate saves profile fields and, when requested, changes the password.
func SettingsUpdate(svc users.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}

		var input users.SettingsInput
		if err := validators.DecodeRequest(r, &input, func(form url.Values) {
			input.Email = validators.SanitizeString(form.Get("email"), 254)
			input.BusinessName = validators.FormOptionalString(form, "business_name")
			input.BusinessDescription = validators.FormOptionalString(form, "business_description")
			input.Phone = validators.FormOptionalString(form, "phone")
			input.Location = validators.FormOptionalString(form, "location")
			input.CurrentPassword = form.Get("current_password")
			input.NewPassword = form.Get("new_password")
		}); err != nil {
			pages.fail(w, r, "/settings", err)
			return
		}
		if !validators.IsJSON(r) && input.NewPassword != r.PostForm.Get("confirm_password") {
			pages.fail(w, r, "/settings", passwordMismatch())
			return
		}

		profile, err := svc.UpdateSettings(r.Context(), userID, input)
		if err != nil {
			pages.fail(w, r, "/settings", err)
			return
		}
		pages.done(w, r, "/settings", profile, "Settings updated successfully.")
	}
}
