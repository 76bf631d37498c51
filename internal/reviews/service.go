package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseChecker answers whether a user bought a product.
type PurchaseChecker interface {
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// Service moderates product reviews.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*ReviewDTO, error)
	Approve(ctx context.Context, reviewID uuid.UUID) (*ReviewDTO, error)
	Reject(ctx context.Context, reviewID uuid.UUID) error
	AdminList(ctx context.Context, filter enums.ReviewFilter) ([]ReviewDTO, error)
	ListApproved(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error)
	Stats(ctx context.Context, productID uuid.UUID) (Stats, error)
	SellerStats(ctx context.Context, sellerID uuid.UUID) (Stats, error)
	Reply(ctx context.Context, reviewID, sellerID uuid.UUID, response string) (*ReviewDTO, error)
	CanReview(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	Counts(ctx context.Context) (ModerationCounts, error)
}

type ServiceParams struct {
	DB            *db.Client
	Purchases     PurchaseChecker
	Notifications notifications.Service
	Metrics       *metrics.StorefrontMetrics
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	db        *db.Client
	repo      *Repository
	purchases PurchaseChecker
	notify    notifications.Service
	metrics   *metrics.StorefrontMetrics
	validate  *validator.Validate
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase checker required")
	}
	now := params.Now
	if now == nil {
		now = db.NowUTC
	}
	return &service{
		db:        params.DB,
		repo:      NewRepository(params.DB.DB()),
		purchases: params.Purchases,
		notify:    params.Notifications,
		metrics:   params.Metrics,
		validate:  validator.New(),
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Submit creates or overwrites the user's review of a product. Any edit sends the review
// back to moderation.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*ReviewDTO, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Body = strings.TrimSpace(input.Body)
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please provide a valid rating between 1 and 5.")
	}
	if input.Body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please add a short review comment.")
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Review is too long.")
	}

	if _, err := s.repo.productExists(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	purchased, err := s.purchases.HasPurchased(ctx, input.UserID, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !purchased {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Only customers who purchased this item can leave a review.")
	}

	var title *string
	if input.Title != "" {
		title = &input.Title
	}

	var reviewID uuid.UUID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByProductAndUser(ctx, input.ProductID, input.UserID)
		switch {
		case err == nil:
			reviewID = existing.ID
			return repo.Updates(ctx, existing.ID, map[string]any{
				"rating":      input.Rating,
				"title":       title,
				"body":        input.Body,
				"is_approved": false,
				"approved_at": nil,
				"created_at":  s.now(),
			})
		case errors.Is(err, gorm.ErrRecordNotFound):
			review := &models.Review{
				ProductID: input.ProductID,
				UserID:    input.UserID,
				Rating:    input.Rating,
				Title:     title,
				Body:      input.Body,
				CreatedAt: s.now(),
			}
			if err := repo.Create(ctx, review); err != nil {
				if db.IsUniqueViolation(err, "reviews_product_user_key") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "Review already submitted")
				}
				return err
			}
			reviewID = review.ID
			return nil
		default:
			return err
		}
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save review")
	}
	return s.load(ctx, reviewID)
}

func (s *service) Approve(ctx context.Context, reviewID uuid.UUID) (*ReviewDTO, error) {
	review, err := s.find(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Updates(ctx, reviewID, map[string]any{
		"is_approved": true,
		"approved_at": s.now(),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve review")
	}
	s.metrics.ReviewModerated("approved")

	if s.notify != nil && review.Product != nil {
		err := s.notify.Notify(ctx, notifications.Message{
			UserID: review.Product.SellerID,
			Type:   enums.NotificationTypeReview,
			Text:   fmt.Sprintf("A new %d-star review was published on %s", review.Rating, review.Product.Title),
			Link:   "/products/" + review.ProductID.String(),
		})
		if err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "review_id", reviewID.String()), "notify seller of approved review failed", err)
		}
	}
	return s.load(ctx, reviewID)
}

// Reject deletes the review outright.
func (s *service) Reject(ctx context.Context, reviewID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, reviewID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Review not found")
	}
	s.metrics.ReviewModerated("rejected")
	return nil
}

func (s *service) AdminList(ctx context.Context, filter enums.ReviewFilter) ([]ReviewDTO, error) {
	rows, err := s.repo.ListForModeration(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return FromModels(rows), nil
}

func (s *service) ListApproved(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error) {
	rows, err := s.repo.ListApproved(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return FromModels(rows), nil
}

func (s *service) Stats(ctx context.Context, productID uuid.UUID) (Stats, error) {
	row, err := s.repo.Stats(ctx, []uuid.UUID{productID})
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review stats")
	}
	return statsFromRow(row), nil
}

// SellerStats aggregates approved reviews across every listing of a seller.
func (s *service) SellerStats(ctx context.Context, sellerID uuid.UUID) (Stats, error) {
	ids, err := s.repo.SellerProductIDs(ctx, sellerID)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller products")
	}
	if len(ids) == 0 {
		return Stats{}, nil
	}
	row, err := s.repo.Stats(ctx, ids)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review stats")
	}
	return statsFromRow(row), nil
}

// Reply records the seller's public response. Only the seller of the reviewed product may reply.
func (s *service) Reply(ctx context.Context, reviewID, sellerID uuid.UUID, response string) (*ReviewDTO, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please enter a response.")
	}
	review, err := s.find(ctx, reviewID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You can only reply to reviews on your own products.")
		}
		return nil, err
	}
	if review.Product == nil || review.Product.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You can only reply to reviews on your own products.")
	}
	if err := s.repo.Updates(ctx, reviewID, responseValues(response, s.now())); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save review response")
	}
	return s.load(ctx, reviewID)
}

// CanReview reports whether the review form should be offered.
func (s *service) CanReview(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return s.purchases.HasPurchased(ctx, userID, productID)
}

func (s *service) Counts(ctx context.Context) (ModerationCounts, error) {
	pending, approved, total, err := s.repo.ModerationCounts(ctx)
	if err != nil {
		return ModerationCounts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reviews")
	}
	return ModerationCounts{Pending: pending, Approved: approved, Total: total}, nil
}

func (s *service) find(ctx context.Context, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	return review, nil
}

func (s *service) load(ctx context.Context, reviewID uuid.UUID) (*ReviewDTO, error) {
	review, err := s.find(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(review)
	return &dto, nil
}
