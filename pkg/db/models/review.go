package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a moderated product review, one per (product, user).
type Review struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:reviews_product_user_key"`
	Product          *Product   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:reviews_product_user_key"`
	User             *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Rating           int        `gorm:"column:rating;not null"`
	Title            *string    `gorm:"column:title"`
	Body             string     `gorm:"column:body;not null"`
	IsApproved       bool       `gorm:"column:is_approved;not null;default:false"`
	ApprovedAt       *time.Time `gorm:"column:approved_at"`
	SellerResponse   *string    `gorm:"column:seller_response"`
	SellerResponseAt *time.Time `gorm:"column:seller_response_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}
