package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid is an offer on an auction listing. At most one bid per product is winning.
type Bid struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:bids_product_id_idx"`
	Product     *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:bids_user_id_idx"`
	User        *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	AmountCents int64     `gorm:"column:amount_cents;not null"`
	IsWinning   bool      `gorm:"column:is_winning;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (b *Bid) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
