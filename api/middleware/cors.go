package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS admits cross-origin calls from the configured origins, typically a separately
// hosted storefront frontend. With no origins configured the site is same-origin only and
// the middleware is a pass-through. A "*" entry opens reads to anyone but never with
// cookies attached.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	wildcard := slices.Contains(origins, "*")
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
			idempotencyHeader,
			csrfHeader,
		},
		ExposedHeaders:   []string{csrfHeader, requestIDHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	})
}
