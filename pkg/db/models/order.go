package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the immutable record of a checkout.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID         *uuid.UUID        `gorm:"column:buyer_id;type:uuid;index:orders_buyer_id_idx"`
	BuyerName       string            `gorm:"column:buyer_name;not null"`
	BuyerEmail      string            `gorm:"column:buyer_email;not null"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	TotalCents      int64             `gorm:"column:total_cents;not null"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return nil
}

// OrderItem snapshots a cart line at commit time.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index:order_items_order_id_idx"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid;index:order_items_product_id_idx"`
	SellerID       *uuid.UUID `gorm:"column:seller_id;type:uuid;index:order_items_seller_id_idx"`
	Title          string     `gorm:"column:title;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotalCents is quantity times the frozen unit price.
func (i OrderItem) LineTotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}
