package cart

import (
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
)

// Line is one cart row joined against the live product.
type Line struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	ImageURL       *string   `json:"image_url,omitempty"`
	SellerID       uuid.UUID `json:"seller_id"`
	Stock          *int      `json:"stock"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	UnitPrice      string    `json:"unit_price"`
	LineTotalCents int64     `json:"line_total_cents"`
	LineTotal      string    `json:"line_total"`
}

// Totals are the live item count and amount of a cart.
type Totals struct {
	ItemCount  int    `json:"total_items"`
	TotalCents int64  `json:"total_amount_cents"`
	Total      string `json:"total_amount"`
}

func newTotals(count int, cents int64) Totals {
	return Totals{ItemCount: count, TotalCents: cents, Total: money.Format(cents)}
}

// View is the cart page payload.
type View struct {
	Cart   Cart   `json:"-"`
	Lines  []Line `json:"items"`
	Totals Totals `json:"totals"`
}

// AddResult reports how much of a requested quantity made it into the cart.
type AddResult struct {
	Cart      Cart   `json:"-"`
	Added     int    `json:"added"`
	Requested int    `json:"requested"`
	Message   string `json:"message"`
	Totals    Totals `json:"totals"`
}

// UpdateResult is the cart after a bulk quantity update, with a notice per clamped line.
type UpdateResult struct {
	Cart    Cart     `json:"-"`
	Notices []string `json:"notices"`
	Totals  Totals   `json:"totals"`
}
