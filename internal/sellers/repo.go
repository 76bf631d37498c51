package sellers

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository runs the seller profile and dashboard aggregates. Sales figures come from the
// order item snapshots so they survive product deletion.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindSeller(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) Products(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

type productCounts struct {
	Total  int64
	Active int64
}

func (r *Repository) ProductCounts(ctx context.Context, sellerID uuid.UUID) (productCounts, error) {
	var out productCounts
	conn := r.db.WithContext(ctx).Model(&models.Product{}).Where("seller_id = ?", sellerID)
	if err := conn.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return out, err
	}
	err := conn.Session(&gorm.Session{}).Where("stock IS NULL OR stock > 0").Count(&out.Active).Error
	return out, err
}

type salesTotals struct {
	Orders       int64
	Units        int64
	RevenueCents int64
}

func (r *Repository) SalesTotals(ctx context.Context, sellerID uuid.UUID) (salesTotals, error) {
	var out salesTotals
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("COUNT(DISTINCT order_id) AS orders, COALESCE(SUM(quantity), 0) AS units, COALESCE(SUM(quantity * unit_price_cents), 0) AS revenue_cents").
		Where("seller_id = ?", sellerID).
		Scan(&out).Error
	return out, err
}

type productSales struct {
	ProductID    *uuid.UUID
	Title        string
	Units        int64
	RevenueCents int64
}

func (r *Repository) TopProducts(ctx context.Context, sellerID uuid.UUID, limit int) ([]productSales, error) {
	var rows []productSales
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("product_id, title, SUM(quantity) AS units, SUM(quantity * unit_price_cents) AS revenue_cents").
		Where("seller_id = ?", sellerID).
		Group("product_id, title").
		Order("units DESC, revenue_cents DESC, title").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

type categorySales struct {
	Category     string
	Units        int64
	RevenueCents int64
}

func (r *Repository) CategorySales(ctx context.Context, sellerID uuid.UUID) ([]categorySales, error) {
	var rows []categorySales
	err := r.db.WithContext(ctx).
		Table("order_items").
		Select("products.category AS category, SUM(order_items.quantity) AS units, SUM(order_items.quantity * order_items.unit_price_cents) AS revenue_cents").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("order_items.seller_id = ?", sellerID).
		Group("products.category").
		Order("revenue_cents DESC, category").
		Scan(&rows).Error
	return rows, err
}

// RecentOrders returns the newest orders containing at least one of the seller's items.
func (r *Repository) RecentOrders(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Order, error) {
	sub := r.db.Model(&models.OrderItem{}).Select("order_id").Where("seller_id = ?", sellerID)
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", "seller_id = ?", sellerID).
		Where("id IN (?)", sub).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ActiveAuctions(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND is_auction = ? AND auction_end > ? AND auction_closed_at IS NULL", sellerID, true, now).
		Order("auction_end ASC").
		Find(&rows).Error
	return rows, err
}

// BidCounts returns the number of bids per product.
func (r *Repository) BidCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ProductID uuid.UUID
		Bids      int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Select("product_id, COUNT(*) AS bids").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	for _, row := range rows {
		out[row.ProductID] = row.Bids
	}
	return out, err
}
