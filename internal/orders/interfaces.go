package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListAll(ctx context.Context, params pagination.Params) ([]models.Order, int64, error)
	ListForExport(ctx context.Context) ([]models.Order, error)
	Count(ctx context.Context) (int64, error)
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}
