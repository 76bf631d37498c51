package reports

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists product reports.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, report *models.ProductReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// List returns reports newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status enums.ReportStatus) ([]models.ProductReport, error) {
	qb := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Reporter").
		Order("created_at DESC, id DESC")
	if status != "" {
		qb = qb.Where("status = ?", status)
	}
	var rows []models.ProductReport
	err := qb.Find(&rows).Error
	return rows, err
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ReportStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductReport{}).
		Where("id = ?", id).
		Update("status", status)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) CountByStatus(ctx context.Context, status enums.ReportStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductReport{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *Repository) productExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
