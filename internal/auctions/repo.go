package auctions

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists auction state on products and the bids table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// LockProduct loads the product row, locking it on dialects that support FOR UPDATE.
func (r *Repository) LockProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ClearWinning marks every bid on the product as not winning.
func (r *Repository) ClearWinning(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("product_id = ? AND is_winning = ?", productID, true).
		UpdateColumn("is_winning", false).Error
}

func (r *Repository) CreateBid(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *Repository) UpdateProduct(ctx context.Context, productID uuid.UUID, values map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(values).Error
}

// WinningBid returns the winning bid for the product, or nil.
func (r *Repository) WinningBid(ctx context.Context, productID uuid.UUID) (*models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_winning = ?", productID, true).
		Limit(1).
		Find(&bids).Error
	if err != nil || len(bids) == 0 {
		return nil, err
	}
	return &bids[0], nil
}

// HighestLosingBid returns the highest non-winning bid placed by someone other than
// excludeUserID, or nil.
func (r *Repository) HighestLosingBid(ctx context.Context, productID, excludeUserID uuid.UUID) (*models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id <> ? AND is_winning = ?", productID, excludeUserID, false).
		Order("amount_cents DESC, created_at DESC").
		Limit(1).
		Find(&bids).Error
	if err != nil || len(bids) == 0 {
		return nil, err
	}
	return &bids[0], nil
}

// History lists bids on a product, newest first, with bidders loaded.
func (r *Repository) History(ctx context.Context, productID uuid.UUID, limit int) ([]models.Bid, error) {
	var bids []models.Bid
	query := r.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC, amount_cents DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return bids, query.Find(&bids).Error
}

// CountBids returns the number of bids on a product.
func (r *Repository) CountBids(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	return count, r.db.WithContext(ctx).Model(&models.Bid{}).Where("product_id = ?", productID).Count(&count).Error
}

// HighestBidBy returns the user's highest bid on the product, or nil.
func (r *Repository) HighestBidBy(ctx context.Context, productID, userID uuid.UUID) (*models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Order("amount_cents DESC").
		Limit(1).
		Find(&bids).Error
	if err != nil || len(bids) == 0 {
		return nil, err
	}
	return &bids[0], nil
}

// ListByUser returns a user's bids with their products, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bids).Error
	return bids, err
}

// ActiveFilter narrows ListActive.
type ActiveFilter struct {
	Category   string
	Categories []string
	EndsBefore *time.Time
	Limit      int
}

// ListActive returns open auctions ordered by soonest end.
func (r *Repository) ListActive(ctx context.Context, now time.Time, filter ActiveFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Preload("Seller").
		Where("is_auction = ? AND auction_end IS NOT NULL AND auction_end > ?", true, now)
	if len(filter.Categories) > 0 {
		query = query.Where("category IN ?", filter.Categories)
	} else if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.EndsBefore != nil {
		query = query.Where("auction_end <= ?", *filter.EndsBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []models.Product
	return rows, query.Order("auction_end ASC").Find(&rows).Error
}

// ActiveCategories lists the distinct categories with an open auction.
func (r *Repository) ActiveCategories(ctx context.Context, now time.Time) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_auction = ? AND auction_end IS NOT NULL AND auction_end > ? AND category <> ''", true, now).
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error
	return categories, err
}

// ExpiredUnsettled returns ended auctions that have not been settled yet.
func (r *Repository) ExpiredUnsettled(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_auction = ? AND auction_end IS NOT NULL AND auction_end <= ? AND auction_closed_at IS NULL", true, now).
		Order("auction_end ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return ids, query.Pluck("id", &ids).Error
}

// BoatListingsToConvert returns fixed-price listings in auction-only categories.
func (r *Repository) BoatListingsToConvert(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("category IN ? AND is_auction = ?", BoatCategories, false).
		Find(&rows).Error
	return rows, err
}

// TopBids returns the highest bids on a product with bidders loaded.
func (r *Repository) TopBids(ctx context.Context, productID uuid.UUID, limit int) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("amount_cents DESC, created_at ASC").
		Limit(limit).
		Find(&bids).Error
	return bids, err
}
