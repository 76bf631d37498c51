package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RequireLogin rejects anonymous callers: JSON clients get a 401, browsers are sent to the
// login page with a flash.
func RequireLogin(flasher responses.Flasher, logg *logger.Logger) func(http.Handler) http.Handler {
	return requireIdentity(func(i Identity) error {
		if !i.Authenticated() {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in to continue.")
		}
		return nil
	}, flasher, logg)
}

// RequireAdmin allows only logged-in administrators.
func RequireAdmin(flasher responses.Flasher, logg *logger.Logger) func(http.Handler) http.Handler {
	return requireIdentity(func(i Identity) error {
		if !i.Authenticated() {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in to continue.")
		}
		if !i.IsAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Admin access required.")
		}
		return nil
	}, flasher, logg)
}

// RequireSeller allows logged-in sellers and administrators.
func RequireSeller(flasher responses.Flasher, logg *logger.Logger) func(http.Handler) http.Handler {
	return requireIdentity(func(i Identity) error {
		if !i.Authenticated() {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in to continue.")
		}
		if !i.IsSeller && !i.IsAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Only sellers can do that.")
		}
		return nil
	}, flasher, logg)
}

func requireIdentity(check func(Identity) error, flasher responses.Flasher, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(IdentityFromContext(r.Context())); err != nil {
				responses.Fail(w, r, logg, flasher, "/", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
