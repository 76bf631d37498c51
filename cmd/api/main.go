package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/cookies"
	"github.com/angelmondragon/storefront-backend/api/render"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/admin"
	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/sellers"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/storage/local"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Instance:    instance.ID(),
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	var deps routes.Dependencies
	conn := dbClient.DB()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	sessionManager, err := session.NewManager(redisClient, cfg.Session)
	if err != nil {
		return deps, err
	}
	cookieStore, err := cookies.New(cfg.Session)
	if err != nil {
		return deps, err
	}

	var renderer responses.Renderer
	if cfg.App.TemplateDir != "" {
		templates := render.New(cookieStore)
		if err := templates.Load(cfg.App.TemplateDir); err != nil {
			return deps, err
		}
		renderer = templates
	}

	uploads, err := local.New(cfg.Uploads, logg)
	if err != nil {
		return deps, err
	}
	images, err := media.NewService(uploads, cfg.Uploads, logg)
	if err != nil {
		return deps, err
	}

	notificationSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return deps, err
	}
	addressSvc := addresses.NewService(conn)

	orderSvc, err := orders.NewService(orders.NewRepository(conn))
	if err != nil {
		return deps, err
	}

	reviewSvc, err := reviews.NewService(reviews.ServiceParams{
		DB:            dbClient,
		Purchases:     orderSvc,
		Notifications: notificationSvc,
		Metrics:       storefrontMetrics,
		Logger:        logg,
	})
	if err != nil {
		return deps, err
	}
	reportSvc, err := reports.NewService(reports.NewRepository(conn))
	if err != nil {
		return deps, err
	}
	favoriteSvc, err := favorites.NewService(favorites.NewRepository(conn))
	if err != nil {
		return deps, err
	}

	hub := auctions.NewHub()
	auctionSvc, err := auctions.NewService(auctions.ServiceParams{
		DB:             dbClient,
		Notifications:  notificationSvc,
		Publisher:      hub,
		Metrics:        storefrontMetrics,
		Logger:         logg,
		IncrementCents: cfg.Auction.BidIncrementCents,
	})
	if err != nil {
		return deps, err
	}

	productSvc, err := product.NewService(product.ServiceParams{
		DB:        dbClient,
		Auctions:  auctionSvc,
		Reviews:   reviewSvc,
		Favorites: favoriteSvc,
		Images:    images,
		Logger:    logg,
	})
	if err != nil {
		return deps, err
	}

	cartSvc, err := cart.NewService(sessionManager, product.NewRepository(conn), logg)
	if err != nil {
		return deps, err
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		TX:            dbClient,
		Repo:          checkout.NewRepository(conn),
		Cart:          cartSvc,
		Addresses:     addressSvc,
		Notifications: notificationSvc,
		Metrics:       storefrontMetrics,
		Logger:        logg,
	})
	if err != nil {
		return deps, err
	}

	userRepo := users.NewRepository(conn)
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Carts:          cartSvc,
		JWTConfig:      cfg.JWT,
		PasswordConfig: &cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return deps, err
	}
	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return deps, err
	}
	resetSvc, err := auth.NewPasswordResetService(auth.PasswordResetServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		BaseURL:        cfg.App.BaseURL,
		Logger:         logg,
	})
	if err != nil {
		return deps, err
	}

	userSvc, err := users.NewService(users.ServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return deps, err
	}
	sellerSvc, err := sellers.NewService(sellers.NewRepository(conn), reviewSvc, nil)
	if err != nil {
		return deps, err
	}
	adminSvc, err := admin.NewService(conn, reviewSvc, reportSvc)
	if err != nil {
		return deps, err
	}

	return routes.Dependencies{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Sessions: sessionManager,
		Cookies:  cookieStore,
		Renderer: renderer,
		Hub:      hub,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),

		HTTPMetrics: storefrontMetrics,

		Auth:          authSvc,
		Register:      registerSvc,
		PasswordReset: resetSvc,
		Products:      productSvc,
		Cart:          cartSvc,
		Checkout:      checkoutSvc,
		Orders:        orderSvc,
		Auctions:      auctionSvc,
		Reviews:       reviewSvc,
		Reports:       reportSvc,
		Favorites:     favoriteSvc,
		Notifications: notificationSvc,
		Addresses:     addressSvc,
		Sellers:       sellerSvc,
		Users:         userSvc,
		Admin:         adminSvc,
	}, nil
}
