package admin

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

// Stats are the admin dashboard counters.
type Stats struct {
	Products        int64 `json:"total_products"`
	Users           int64 `json:"total_users"`
	Orders          int64 `json:"total_orders"`
	PendingReviews  int64 `json:"pending_reviews"`
	ApprovedReviews int64 `json:"approved_reviews"`
	TotalReviews    int64 `json:"total_reviews"`
	OpenReports     int64 `json:"open_reports"`
}

type reviewCounter interface {
	Counts(ctx context.Context) (reviews.ModerationCounts, error)
}

type reportCounter interface {
	OpenCount(ctx context.Context) (int64, error)
}

// Service serves the admin dashboard.
type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	db      *gorm.DB
	reviews reviewCounter
	reports reportCounter
}

func NewService(db *gorm.DB, reviews reviewCounter, reports reportCounter) (Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db required")
	}
	if reviews == nil || reports == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "review and report counters required")
	}
	return &service{db: db, reviews: reviews, reports: reports}, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	conn := s.db.WithContext(ctx)
	for _, target := range []struct {
		model any
		dest  *int64
	}{
		{&models.Product{}, &out.Products},
		{&models.User{}, &out.Users},
		{&models.Order{}, &out.Orders},
	} {
		if err := conn.Model(target.model).Count(target.dest).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count admin stats")
		}
	}

	counts, err := s.reviews.Counts(ctx)
	if err != nil {
		return nil, err
	}
	out.PendingReviews = counts.Pending
	out.ApprovedReviews = counts.Approved
	out.TotalReviews = counts.Total

	if out.OpenReports, err = s.reports.OpenCount(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}
