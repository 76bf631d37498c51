package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ProductReport flags a listing for admin attention.
type ProductReport struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index:product_reports_product_id_idx"`
	Product    *Product           `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	ReporterID uuid.UUID          `gorm:"column:reporter_id;type:uuid;not null"`
	Reporter   *User              `gorm:"foreignKey:ReporterID;constraint:OnDelete:CASCADE"`
	Reason     string             `gorm:"column:reason;not null"`
	Status     enums.ReportStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (r *ProductReport) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.Status == "" {
		r.Status = enums.ReportStatusPending
	}
	return nil
}
