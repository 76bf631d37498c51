package checkout

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository groups the writes a checkout performs inside its transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	IncrementSales(ctx context.Context, sellerID uuid.UUID, qty int) error
	CreateOrder(ctx context.Context, order *models.Order) error
	FindBuyer(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type repository struct {
	products *product.Repository
	orders   orders.Repository
	users    *users.Repository
}

// NewRepository builds a checkout repository over the product, order and user tables.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{
		products: product.NewRepository(db),
		orders:   orders.NewRepository(db),
		users:    users.NewRepository(db),
	}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{
		products: r.products.WithTx(tx),
		orders:   r.orders.WithTx(tx),
		users:    users.NewRepository(tx),
	}
}

func (r *repository) LockProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return r.products.LockByIDs(ctx, ids)
}

func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	return r.products.DecrementStock(ctx, productID, qty)
}

func (r *repository) IncrementSales(ctx context.Context, sellerID uuid.UUID, qty int) error {
	return r.users.IncrementSales(ctx, sellerID, qty)
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.orders.Create(ctx, order)
}

func (r *repository) FindBuyer(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.users.FindByID(ctx, id)
}
