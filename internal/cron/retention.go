package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	day = 24 * time.Hour

	notificationRetentionDays = 30
	viewRetentionDays         = 90
)

type notificationPurger interface {
	DeleteReadOlderThan(ctx context.Context, now time.Time, age time.Duration) (int64, error)
}

type resetPurger interface {
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}

type viewPurger interface {
	DeleteViewsOlderThan(ctx context.Context, now time.Time, age time.Duration) (int64, error)
}

// RetentionJobsParams wires the tables that are trimmed on a schedule. Day counts of zero
// or less fall back to 30 days for read notifications and 90 for product views.
type RetentionJobsParams struct {
	Logger           *logger.Logger
	Notifications    notificationPurger
	NotificationDays int
	Resets           resetPurger
	Products         viewPurger
	ViewDays         int
}

// NewRetentionJobs returns the housekeeping jobs: read notifications, spent or expired
// password reset tokens, and old product views.
func NewRetentionJobs(params RetentionJobsParams) ([]Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Notifications == nil:
		return nil, fmt.Errorf("notifications service required")
	case params.Resets == nil:
		return nil, fmt.Errorf("password reset service required")
	case params.Products == nil:
		return nil, fmt.Errorf("product service required")
	}

	notificationKeep := daysOr(params.NotificationDays, notificationRetentionDays)
	viewKeep := daysOr(params.ViewDays, viewRetentionDays)

	return []Job{
		&retentionJob{
			name: "notification_cleanup",
			keep: notificationKeep,
			purge: func(ctx context.Context, now time.Time) (int64, error) {
				return params.Notifications.DeleteReadOlderThan(ctx, now, notificationKeep)
			},
			logg: params.Logger,
			now:  time.Now,
		},
		&retentionJob{
			name:  "password_reset_cleanup",
			purge: params.Resets.DeleteStale,
			logg:  params.Logger,
			now:   time.Now,
		},
		&retentionJob{
			name: "product_view_retention",
			keep: viewKeep,
			purge: func(ctx context.Context, now time.Time) (int64, error) {
				return params.Products.DeleteViewsOlderThan(ctx, now, viewKeep)
			},
			logg: params.Logger,
			now:  time.Now,
		},
	}, nil
}

func daysOr(days, fallback int) time.Duration {
	if days <= 0 {
		days = fallback
	}
	return time.Duration(days) * day
}

// retentionJob deletes the rows of one table that aged out. keep is zero for tables whose
// rows carry their own expiry.
type retentionJob struct {
	name  string
	keep  time.Duration
	purge func(ctx context.Context, now time.Time) (int64, error)
	logg  *logger.Logger
	now   func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	deleted, err := j.purge(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	fields := map[string]any{"rows_deleted": deleted}
	if j.keep > 0 {
		fields["keep_days"] = int(j.keep / day)
	}
	logCtx := j.logg.WithFields(ctx, fields)
	if deleted > 0 {
		j.logg.Info(logCtx, "expired rows purged")
		return nil
	}
	j.logg.Debug(logCtx, "nothing to purge")
	return nil
}
