package addresses

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the per-user address book.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the address book to db, which may be a transaction.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveIfMissing inserts the address unless the user already saved the same text.
func (r *Repository) SaveIfMissing(ctx context.Context, userID uuid.UUID, text string) error {
	row := models.Address{UserID: userID, AddressText: text}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// List returns the user's saved addresses, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Address, error) {
	var rows []models.Address
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return rows, query.Find(&rows).Error
}

// Search matches saved addresses containing q, case-insensitively.
func (r *Repository) Search(ctx context.Context, userID uuid.UUID, q string, limit int) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND LOWER(address_text) LIKE ?", userID, "%"+q+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
