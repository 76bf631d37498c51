package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductView records a logged-in user viewing a product.
type ProductView struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:product_views_user_viewed_idx,priority:1"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	ViewedAt  time.Time `gorm:"column:viewed_at;not null;index:product_views_user_viewed_idx,priority:2"`
}

func (v *ProductView) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	return nil
}
