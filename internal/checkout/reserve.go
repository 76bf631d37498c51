package checkout

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
)

// reservation is one cart line matched to its locked product.
type reservation struct {
	Product  models.Product
	Quantity int
}

// reserveLines matches every cart line to a locked product and reports one message per
// line that cannot be fulfilled. Lines are returned in the cart's stable order.
func reserveLines(c cart.Cart, locked []models.Product) ([]reservation, []string) {
	byID := make(map[uuid.UUID]models.Product, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
	}

	var (
		out      []reservation
		failures []string
	)
	for _, id := range c.ProductIDs() {
		qty := c[id]
		p, ok := byID[id]
		if !ok {
			failures = append(failures, fmt.Sprintf("Product %s is no longer available.", id))
			continue
		}
		if qty > cart.MaxLineQuantity {
			failures = append(failures, fmt.Sprintf("You can order at most %d of %s (you wanted %d).", cart.MaxLineQuantity, p.Title, qty))
			continue
		}
		if p.Stock != nil && *p.Stock < qty {
			failures = append(failures, fmt.Sprintf("Only %d left of %s (you wanted %d).", *p.Stock, p.Title, qty))
			continue
		}
		out = append(out, reservation{Product: p, Quantity: qty})
	}
	return out, failures
}

// salesBySeller sums reserved quantities per seller.
func salesBySeller(lines []reservation) map[uuid.UUID]int {
	out := map[uuid.UUID]int{}
	for _, line := range lines {
		out[line.Product.SellerID] += line.Quantity
	}
	return out
}

// orderItems freezes each line at its locked price. The order total is checked so it
// always equals the sum of quantity times unit price.
func orderItems(lines []reservation) ([]models.OrderItem, int64, error) {
	items := make([]models.OrderItem, 0, len(lines))
	amounts := make([]int64, 0, len(lines))
	for _, line := range lines {
		lineTotal, err := money.LineTotal(line.Product.PriceCents, line.Quantity)
		if err != nil {
			return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "The total for %s is too large.", line.Product.Title)
		}
		amounts = append(amounts, lineTotal)

		productID := line.Product.ID
		sellerID := line.Product.SellerID
		items = append(items, models.OrderItem{
			ProductID:      &productID,
			SellerID:       &sellerID,
			Title:          line.Product.Title,
			Quantity:       line.Quantity,
			UnitPriceCents: line.Product.PriceCents,
		})
	}
	total, err := money.Sum(amounts...)
	if err != nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "Your order total is too large.")
	}
	return items, total, nil
}
