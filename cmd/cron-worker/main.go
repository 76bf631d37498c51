package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Instance:    instance.ID(),
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
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

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return err
	}
	if registry, err = registry.Only(cfg.Cron.Jobs); err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"lock":        lock.Key(),
		"jobs":        len(registry.Jobs()),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// buildJobs wires the periodic maintenance jobs. The auction sweep runs without a live
// publisher: browsers on the API replicas derive the ended state from end_time.
func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	conn := dbClient.DB()

	notificationSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	auctionSvc, err := auctions.NewService(auctions.ServiceParams{
		DB:             dbClient,
		Notifications:  notificationSvc,
		Logger:         logg,
		IncrementCents: cfg.Auction.BidIncrementCents,
	})
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	reviewSvc, err := reviews.NewService(reviews.ServiceParams{
		DB:            dbClient,
		Purchases:     orderSvc,
		Notifications: notificationSvc,
		Logger:        logg,
	})
	if err != nil {
		return nil, err
	}
	favoriteSvc, err := favorites.NewService(favorites.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	productSvc, err := product.NewService(product.ServiceParams{
		DB:        dbClient,
		Auctions:  auctionSvc,
		Reviews:   reviewSvc,
		Favorites: favoriteSvc,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}
	resetSvc, err := auth.NewPasswordResetService(auth.PasswordResetServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		BaseURL:        cfg.App.BaseURL,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}

	auctionJob, err := cron.NewAuctionCloseJob(cron.AuctionCloseJobParams{
		Logger:    logg,
		Auctions:  auctionSvc,
		BatchSize: cfg.Cron.AuctionBatchSize,
	})
	if err != nil {
		return nil, err
	}
	housekeeping, err := cron.NewRetentionJobs(cron.RetentionJobsParams{
		Logger:           logg,
		Notifications:    notificationSvc,
		NotificationDays: cfg.Cron.NotificationTTLDays,
		Resets:           resetSvc,
		Products:         productSvc,
		ViewDays:         cfg.Cron.ViewRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	return append([]cron.Job{auctionJob}, housekeeping...), nil
}
