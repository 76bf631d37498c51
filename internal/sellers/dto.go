package sellers

import (
	"time"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
)

// ProfileDTO is the public seller page.
type ProfileDTO struct {
	ID          uuid.UUID                `json:"id"`
	Username    string                   `json:"username"`
	DisplayName string                   `json:"display_name"`
	Description *string                  `json:"description,omitempty"`
	Location    *string                  `json:"location,omitempty"`
	Rating      float64                  `json:"rating"`
	TotalSales  int                      `json:"total_sales"`
	MemberSince time.Time                `json:"member_since"`
	Reviews     reviews.Stats            `json:"reviews"`
	Products    []product.ProductSummary `json:"products"`
}

// ProductSales is one top-selling product row.
type ProductSales struct {
	ProductID    *uuid.UUID `json:"product_id,omitempty"`
	Title        string     `json:"title"`
	Units        int64      `json:"units"`
	RevenueCents int64      `json:"revenue_cents"`
	Revenue      string     `json:"revenue"`
}

// CategorySales totals a seller's sales in one category.
type CategorySales struct {
	Category     string `json:"category"`
	Units        int64  `json:"units"`
	RevenueCents int64  `json:"revenue_cents"`
	Revenue      string `json:"revenue"`
}

// RecentOrder is an order containing the seller's items; totals cover those items only.
type RecentOrder struct {
	ID         uuid.UUID         `json:"id"`
	BuyerName  string            `json:"buyer_name"`
	Units      int               `json:"units"`
	TotalCents int64             `json:"total_cents"`
	Total      string            `json:"total"`
	Status     enums.OrderStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ActiveAuction is an open auction on the dashboard.
type ActiveAuction struct {
	ProductID     uuid.UUID  `json:"product_id"`
	Title         string     `json:"title"`
	CurrentBid    string     `json:"current_bid,omitempty"`
	MinimumBid    string     `json:"minimum_bid"`
	BidCount      int64      `json:"bid_count"`
	AuctionEnd    *time.Time `json:"auction_end"`
	TimeRemaining string     `json:"time_remaining"`
}

// DashboardDTO is the seller dashboard.
type DashboardDTO struct {
	ProductCount   int64           `json:"product_count"`
	ActiveListings int64           `json:"active_listings"`
	OrderCount     int64           `json:"order_count"`
	UnitsSold      int64           `json:"units_sold"`
	RevenueCents   int64           `json:"revenue_cents"`
	Revenue        string          `json:"revenue"`
	Reviews        reviews.Stats   `json:"reviews"`
	TopProducts    []ProductSales  `json:"top_products"`
	Categories     []CategorySales `json:"categories"`
	RecentOrders   []RecentOrder   `json:"recent_orders"`
	ActiveAuctions []ActiveAuction `json:"active_auctions"`
}

func formatCents(cents int64) string {
	return money.Format(cents)
}
