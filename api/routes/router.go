package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/cookies"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/admin"
	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/sellers"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer needs: readiness pings,
// auth rate limiting and idempotency records.
type RedisStore interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies is everything the router wires into handlers.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisStore
	Sessions middleware.SessionStore
	Cookies  *cookies.Store
	Renderer responses.Renderer
	Hub      *auctions.Hub
	Metrics  http.Handler

	// HTTPMetrics, when set, receives request timings from the access log.
	HTTPMetrics middleware.RequestObserver

	Auth          auth.Service
	Register      auth.RegisterService
	PasswordReset auth.PasswordResetService
	Products      product.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Auctions      auctions.Service
	Reviews       reviews.Service
	Reports       reports.Service
	Favorites     favorites.Service
	Notifications notifications.Service
	Addresses     addresses.Service
	Sellers       sellers.Service
	Users         users.Service
	Admin         admin.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	pages := controllers.Pages{Cookies: deps.Cookies, Renderer: deps.Renderer, Logger: logg}
	flasher := pages.Flasher()

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.SecurityHeaders,
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.Metrics != nil && cfg.FeatureFlags.Metrics {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if dir := strings.TrimSpace(cfg.Uploads.Dir); dir != "" {
		prefix := strings.TrimRight(cfg.Uploads.PublicPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(dir))))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.CSRF(cfg.Session, cfg.App.CORSOrigins, flasher, logg),
			middleware.Session(cfg.JWT, deps.Sessions, deps.Cookies, logg),
			middleware.Idempotency(deps.Redis, logg),
		)
		requireLogin := middleware.RequireLogin(flasher, logg)

		r.Get("/", controllers.Home(deps.Products, pages))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Products, pages))
			r.Get("/autocomplete", controllers.ProductAutocomplete(deps.Products, pages))
			r.Get("/{productId}", controllers.ProductDetail(deps.Products, pages))
			r.With(middleware.RequireSeller(flasher, logg)).Post("/", controllers.ProductCreate(deps.Products, pages))
			r.Group(func(r chi.Router) {
				r.Use(requireLogin)
				r.Post("/{productId}/delete", controllers.ProductDelete(deps.Products, pages))
				r.Post("/{productId}/reviews", controllers.ReviewSubmit(deps.Reviews, pages))
				r.Post("/{productId}/report", controllers.ProductReport(deps.Reports, pages))
			})
		})
		r.With(requireLogin).Post("/reviews/{reviewId}/reply", controllers.ReviewReply(deps.Reviews, pages))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(deps.Cart, pages))
			r.Get("/summary", controllers.CartSummary(deps.Cart, pages))
			r.Post("/add/{productId}", controllers.CartAdd(deps.Cart, pages))
			r.Post("/update", controllers.CartUpdate(deps.Cart, pages))
			r.Post("/remove/{productId}", controllers.CartRemove(deps.Cart, pages))
		})

		r.Route("/auctions", func(r chi.Router) {
			r.Get("/", controllers.AuctionList(deps.Auctions, pages))
			r.Get("/{productId}/bids", controllers.AuctionBids(deps.Auctions, pages))
			r.Get("/{productId}/live", controllers.AuctionLive(deps.Hub, controllers.NewLiveUpgrader(cfg.App.CORSOrigins), pages))
			r.With(requireLogin).Post("/{productId}/bids", controllers.AuctionPlaceBid(deps.Auctions, pages))
			r.With(requireLogin).Post("/{productId}/end", controllers.AuctionEnd(deps.Auctions, pages))
		})

		r.Get("/sellers/{sellerId}", controllers.SellerProfile(deps.Sellers, pages))

		r.Get("/login", controllers.AuthPage("login", pages))
		r.Get("/register", controllers.AuthPage("register", pages))
		r.Get("/password/forgot", controllers.AuthPage("forgot_password", pages))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, flasher, logg)).
			Post("/login", controllers.Login(deps.Auth, pages))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, flasher, logg)).
			Post("/register", controllers.Register(deps.Register, deps.Auth, pages))
		r.Post("/logout", controllers.Logout(deps.Auth, pages))
		r.Post("/password/forgot", controllers.PasswordForgot(deps.PasswordReset, pages))
		r.Get("/password/reset/{token}", controllers.PasswordResetForm(deps.PasswordReset, pages))
		r.Post("/password/reset/{token}", controllers.PasswordReset(deps.PasswordReset, pages))

		r.Group(func(r chi.Router) {
			r.Use(requireLogin)

			r.Get("/checkout", controllers.CheckoutPreview(deps.Checkout, pages))
			r.Post("/checkout", controllers.CheckoutPlaceOrder(deps.Checkout, pages))
			r.Get("/orders", controllers.OrderList(deps.Orders, pages))
			r.Get("/orders/{orderId}", controllers.OrderConfirmation(deps.Orders, pages))

			r.Get("/my-bids", controllers.MyBids(deps.Auctions, pages))
			r.Get("/my-listings", controllers.MyListings(deps.Products, pages))
			r.Get("/recently-viewed", controllers.RecentlyViewed(deps.Products, pages))
			r.Get("/dashboard", controllers.SellerDashboard(deps.Sellers, pages))

			r.Get("/favorites", controllers.FavoriteList(deps.Favorites, pages))
			r.Post("/favorites/{productId}", controllers.FavoriteAdd(deps.Favorites, pages))
			r.Post("/favorites/{productId}/remove", controllers.FavoriteRemove(deps.Favorites, pages))

			r.Get("/notifications", controllers.NotificationList(deps.Notifications, pages))
			r.Get("/notifications/unread", controllers.NotificationUnread(deps.Notifications, pages))
			r.Post("/notifications/read", controllers.NotificationMarkRead(deps.Notifications, pages))

			r.Get("/addresses", controllers.AddressSuggestions(deps.Addresses, pages))
			r.Get("/settings", controllers.Settings(deps.Users, pages))
			r.Post("/settings", controllers.SettingsUpdate(deps.Users, pages))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(flasher, logg))

			r.Get("/", controllers.AdminDashboard(deps.Admin, pages))
			r.Get("/reviews", controllers.AdminReviews(deps.Reviews, pages))
			r.Post("/reviews/{reviewId}/approve", controllers.AdminReviewApprove(deps.Reviews, pages))
			r.Post("/reviews/{reviewId}/reject", controllers.AdminReviewReject(deps.Reviews, pages))

			r.Get("/orders", controllers.AdminOrders(deps.Orders, pages))
			r.Get("/orders/export", controllers.AdminOrdersExport(deps.Orders, pages))
			r.Get("/orders/{orderId}", controllers.AdminOrderDetail(deps.Orders, pages))

			r.Get("/products", controllers.AdminProducts(deps.Products, pages))
			r.Post("/products/{productId}", controllers.AdminProductUpdate(deps.Products, pages))
			r.Post("/products/{productId}/delete", controllers.AdminProductDelete(deps.Products, pages))
			r.Post("/auctions/convert-boats", controllers.AdminConvertBoats(deps.Auctions, pages))

			r.Get("/users", controllers.AdminUsers(deps.Users, pages))
			r.Post("/users/{userId}/toggle-admin", controllers.AdminToggleAdmin(deps.Users, pages))
			r.Post("/users/{userId}/toggle-seller", controllers.AdminToggleSeller(deps.Users, pages))
			r.Post("/users/{userId}/seller", controllers.AdminSellerDetails(deps.Users, pages))
			r.Post("/users/{userId}/delete", controllers.AdminUserDelete(deps.Users, pages))

			r.Get("/reports", controllers.AdminReports(deps.Reports, pages))
			r.Post("/reports/{reportId}/status", controllers.AdminReportStatus(deps.Reports, pages))
		})
	})

	return r
}
