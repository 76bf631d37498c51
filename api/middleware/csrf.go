package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/gorilla/csrf"
)

const csrfHeader = "X-CSRF-Token"

// CSRF protects cookie-authenticated unsafe requests with a double-submit token. Bearer
// clients carry no ambient credentials and skip the check. The current token is echoed in
// the X-CSRF-Token response header for script clients.
func CSRF(cfg config.SessionConfig, trustedOrigins []string, flasher responses.Flasher, logg *logger.Logger) func(http.Handler) http.Handler {
	if !cfg.CSRFEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	failure := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logg != nil {
			ctx := logg.WithField(r.Context(), "csrf_reason", errString(csrf.FailureReason(r)))
			logg.Warn(ctx, "csrf.rejected")
		}
		responses.Fail(w, r, logg, flasher, responses.Back(r, "/"),
			pkgerrors.New(pkgerrors.CodeForbidden, "Your form expired. Please try again."))
	})

	protect := csrf.Protect(
		[]byte(cfg.CSRFKey),
		csrf.Secure(cfg.CookieSecure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(csrfHeader),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(failure),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(csrfHeader, csrf.Token(r))
			next.ServeHTTP(w, r)
		}))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validators.BearerToken(r) != "" {
				r = csrf.UnsafeSkipCheck(r)
			}
			if !cfg.CookieSecure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
