package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

// OrderDTO is the confirmation and listing view of an order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	BuyerID         *uuid.UUID        `json:"buyer_id,omitempty"`
	BuyerName       string            `json:"buyer_name"`
	BuyerEmail      string            `json:"buyer_email"`
	ShippingAddress string            `json:"shipping_address"`
	TotalCents      int64             `json:"total_cents"`
	Total           string            `json:"total"`
	Status          enums.OrderStatus `json:"status"`
	ItemCount       int               `json:"item_count"`
	Items           []OrderItemDTO    `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
}

// OrderItemDTO is one frozen order line.
type OrderItemDTO struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	SellerID       *uuid.UUID `json:"seller_id,omitempty"`
	Title          string     `json:"title"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	LineTotalCents int64      `json:"line_total_cents"`
}

// OrderList is a page of orders for the admin screen.
type OrderList struct {
	Orders []OrderDTO      `json:"orders"`
	Page   pagination.Page `json:"page"`
}

// Viewer identifies who is asking for an order.
type Viewer struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func FromModel(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		BuyerName:       o.BuyerName,
		BuyerEmail:      o.BuyerEmail,
		ShippingAddress: o.ShippingAddress,
		TotalCents:      o.TotalCents,
		Total:           money.Format(o.TotalCents),
		Status:          o.Status,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
	}
	for _, item := range o.Items {
		dto.ItemCount += item.Quantity
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:      item.ProductID,
			SellerID:       item.SellerID,
			Title:          item.Title,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents(),
		})
	}
	return dto
}

func FromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
