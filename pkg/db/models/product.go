package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a listing. Auction listings carry the bid fields; stock nil means unlimited.
type Product struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SellerID          uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index:products_seller_id_idx"`
	Seller            *User      `gorm:"foreignKey:SellerID;constraint:OnDelete:CASCADE"`
	Title             string     `gorm:"column:title;not null"`
	Description       string     `gorm:"column:description;not null;default:''"`
	PriceCents        int64      `gorm:"column:price_cents;not null"`
	Stock             *int       `gorm:"column:stock"`
	Category          string     `gorm:"column:category;not null;default:'';index:products_category_idx"`
	Condition         string     `gorm:"column:condition;not null;default:''"`
	Location          *string    `gorm:"column:location"`
	ImageURL          *string    `gorm:"column:image_url"`
	ViewCount         int        `gorm:"column:view_count;not null;default:0"`
	IsAuction         bool       `gorm:"column:is_auction;not null;default:false"`
	StartingBidCents  *int64     `gorm:"column:starting_bid_cents"`
	CurrentBidCents   *int64     `gorm:"column:current_bid_cents"`
	AuctionEnd        *time.Time `gorm:"column:auction_end;index:products_auction_end_idx"`
	ReservePriceCents *int64     `gorm:"column:reserve_price_cents"`
	BuyNowPriceCents  *int64     `gorm:"column:buy_now_price_cents"`
	AuctionClosedAt   *time.Time `gorm:"column:auction_closed_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// HasFiniteStock reports whether stock is tracked for the product.
func (p Product) HasFiniteStock() bool {
	return p.Stock != nil
}

// InStock is true for unlimited stock or a positive count.
func (p Product) InStock() bool {
	return p.Stock == nil || *p.Stock > 0
}
