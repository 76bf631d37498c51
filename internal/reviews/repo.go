package reviews

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("User").
		First(&review, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// FindByProductAndUser returns the user's review of a product, or gorm.ErrRecordNotFound.
func (r *Repository) FindByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *Repository) Updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", id).
		Updates(values).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Review{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// ListForModeration returns reviews with reviewer and product loaded.
func (r *Repository) ListForModeration(ctx context.Context, filter enums.ReviewFilter) ([]models.Review, error) {
	query := r.db.WithContext(ctx).Preload("User").Preload("Product")
	switch filter {
	case enums.ReviewFilterPending:
		query = query.Where("is_approved = ?", false).Order("created_at DESC")
	case enums.ReviewFilterApproved:
		query = query.Where("is_approved = ?", true).Order("approved_at DESC")
	default:
		query = query.Order("created_at DESC")
	}
	var rows []models.Review
	return rows, query.Find(&rows).Error
}

// ListApproved returns a product's approved reviews, newest approval first.
func (r *Repository) ListApproved(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ? AND is_approved = ?", productID, true).
		Order("approved_at DESC, created_at DESC").
		Find(&rows).Error
	return rows, err
}

type statsRow struct {
	Count   int64
	Average *float64
}

// Stats aggregates approved reviews for the given products.
func (r *Repository) Stats(ctx context.Context, productIDs []uuid.UUID) (statsRow, error) {
	var row statsRow
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COUNT(*) AS count, AVG(rating) AS average").
		Where("product_id IN ? AND is_approved = ?", productIDs, true).
		Scan(&row).Error
	return row, err
}

// SellerProductIDs lists the product ids owned by sellerID.
func (r *Repository) SellerProductIDs(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("seller_id = ?", sellerID).
		Pluck("id", &ids).Error
	return ids, err
}

// ModerationCounts returns pending, approved and total review counts.
func (r *Repository) ModerationCounts(ctx context.Context) (pending, approved, total int64, err error) {
	base := r.db.WithContext(ctx).Model(&models.Review{})
	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return
	}
	if err = base.Session(&gorm.Session{}).Where("is_approved = ?", true).Count(&approved).Error; err != nil {
		return
	}
	pending = total - approved
	return
}

func (r *Repository) productExists(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// responseValues sets the seller response columns.
func responseValues(text string, at time.Time) map[string]any {
	return map[string]any{
		"seller_response":    text,
		"seller_response_at": at,
	}
}
