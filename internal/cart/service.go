package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists the cart inside the session record.
type Store interface {
	LoadCart(ctx context.Context, sessionID string) (map[string]int, error)
	SaveCart(ctx context.Context, sessionID string, cart map[string]int) error
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service is the session-backed shopping cart. Quantities are reconciled against live
// stock on every mutation; prices are never frozen in the cart.
type Service interface {
	Get(ctx context.Context, ref Ref) (Cart, error)
	View(ctx context.Context, ref Ref) (*View, error)
	Add(ctx context.Context, ref Ref, productID uuid.UUID, quantity int) (*AddResult, error)
	Update(ctx context.Context, ref Ref, quantities map[uuid.UUID]int) (*UpdateResult, error)
	Remove(ctx context.Context, ref Ref, productID uuid.UUID) (Cart, error)
	Merge(ctx context.Context, ref Ref) (Cart, error)
	Clear(ctx context.Context, ref Ref) error
	Totals(ctx context.Context, cart Cart) (Totals, error)
	Lines(ctx context.Context, cart Cart) ([]Line, error)
	Summary(ctx context.Context, ref Ref) (Totals, error)
}

type service struct {
	store    Store
	products productFinder
	logg     *logger.Logger
}

// NewService builds a cart service over the session store and product catalog.
func NewService(store Store, products productFinder, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	return &service{store: store, products: products, logg: logg}, nil
}

// Get returns the session cart, hydrating it from the cookie when the session copy is empty.
func (s *service) Get(ctx context.Context, ref Ref) (Cart, error) {
	raw, err := s.store.LoadCart(ctx, ref.SessionID)
	if err != nil {
		return nil, storeError(err, "load cart")
	}
	cart := fromRaw(raw)
	if len(cart) > 0 {
		return cart, nil
	}
	cart = ParseCookie(ref.Cookie)
	if len(cart) > 0 {
		if err := s.save(ctx, ref, cart); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (s *service) View(ctx context.Context, ref Ref) (*View, error) {
	cart, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	lines, err := s.Lines(ctx, cart)
	if err != nil {
		return nil, err
	}
	totals, err := totalsOf(lines)
	if err != nil {
		return nil, err
	}
	return &View{Cart: cart, Lines: lines, Totals: totals}, nil
}

// Add puts up to quantity units of the product in the cart, never more than the stock left
// after what is already in the cart.
func (s *service) Add(ctx context.Context, ref Ref, productID uuid.UUID, quantity int) (*AddResult, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found.")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	cart, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	cart = cart.clone()

	requested := quantity
	if requested < 1 {
		requested = 1
	}
	current := cart[productID]
	added := requested
	if room := MaxLineQuantity - current; room < added {
		if room <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "You can have at most %d of one item in your cart.", MaxLineQuantity).
				WithDetails(map[string]any{"total_items": cart.Count()})
		}
		added = room
	}
	if product.Stock != nil {
		available := *product.Stock - current
		if available <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Item is out of stock.").
				WithDetails(map[string]any{"total_items": cart.Count()})
		}
		if available < added {
			added = available
		}
	}
	cart[productID] = current + added

	if err := s.save(ctx, ref, cart); err != nil {
		return nil, err
	}
	totals, err := s.Totals(ctx, cart)
	if err != nil {
		return nil, err
	}

	message := "Added to cart."
	switch {
	case added == requested:
	case current+added == MaxLineQuantity:
		message = fmt.Sprintf("Only %d added to cart (limit %d per item).", added, MaxLineQuantity)
	default:
		message = fmt.Sprintf("Only %d added to cart (limited stock).", added)
	}
	return &AddResult{Cart: cart, Added: added, Requested: requested, Message: message, Totals: totals}, nil
}

// Update sets line quantities. Non-positive quantities remove the line, quantities above
// finite stock are lowered to it and products that no longer exist are dropped.
func (s *service) Update(ctx context.Context, ref Ref, quantities map[uuid.UUID]int) (*UpdateResult, error) {
	cart, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	cart = cart.clone()

	ids := make([]uuid.UUID, 0, len(quantities))
	for id, qty := range quantities {
		if qty <= 0 {
			delete(cart, id)
			continue
		}
		ids = append(ids, id)
	}
	products, err := s.productsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	notices := []string{}
	for _, id := range Cart(quantities).ProductIDs() {
		qty := quantities[id]
		if qty <= 0 {
			continue
		}
		product, ok := products[id]
		if !ok {
			delete(cart, id)
			continue
		}
		if qty > MaxLineQuantity {
			qty = MaxLineQuantity
			notices = append(notices, fmt.Sprintf("Quantity for %s reduced to the limit of %d.", product.Title, qty))
		}
		if product.Stock != nil && qty > *product.Stock {
			qty = *product.Stock
			notices = append(notices, fmt.Sprintf("Quantity for %s reduced to available stock (%d).", product.Title, qty))
		}
		if qty <= 0 {
			delete(cart, id)
			continue
		}
		cart[id] = qty
	}

	if err := s.save(ctx, ref, cart); err != nil {
		return nil, err
	}
	totals, err := s.Totals(ctx, cart)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Cart: cart, Notices: notices, Totals: totals}, nil
}

func (s *service) Remove(ctx context.Context, ref Ref, productID uuid.UUID) (Cart, error) {
	cart, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	cart = cart.clone()
	delete(cart, productID)
	if err := s.save(ctx, ref, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Merge folds the cookie cart into the session cart after login, keeping the larger
// quantity for products present in both.
func (s *service) Merge(ctx context.Context, ref Ref) (Cart, error) {
	raw, err := s.store.LoadCart(ctx, ref.SessionID)
	if err != nil {
		return nil, storeError(err, "load cart")
	}
	merged := merge(fromRaw(raw), ParseCookie(ref.Cookie))
	if err := s.save(ctx, ref, merged); err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithField(ctx, "cart_items", merged.Count()), "cart merged on login")
	}
	return merged, nil
}

func (s *service) Clear(ctx context.Context, ref Ref) error {
	return s.save(ctx, ref, Cart{})
}

// Totals prices the cart at current catalog prices, skipping vanished products.
func (s *service) Totals(ctx context.Context, cart Cart) (Totals, error) {
	lines, err := s.Lines(ctx, cart)
	if err != nil {
		return Totals{}, err
	}
	return totalsOf(lines)
}

// Lines joins the cart against live products in a stable order. A line whose total does
// not fit in cents is rejected.
func (s *service) Lines(ctx context.Context, cart Cart) ([]Line, error) {
	ids := cart.ProductIDs()
	products, err := s.productsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			continue
		}
		qty := cart[id]
		lineTotal, err := money.LineTotal(product.PriceCents, qty)
		if err != nil {
			return nil, amountTooLarge(product.Title)
		}
		lines = append(lines, Line{
			ProductID:      product.ID,
			Title:          product.Title,
			ImageURL:       product.ImageURL,
			SellerID:       product.SellerID,
			Stock:          product.Stock,
			Quantity:       qty,
			UnitPriceCents: product.PriceCents,
			UnitPrice:      money.Format(product.PriceCents),
			LineTotalCents: lineTotal,
			LineTotal:      money.Format(lineTotal),
		})
	}
	return lines, nil
}

func (s *service) Summary(ctx context.Context, ref Ref) (Totals, error) {
	cart, err := s.Get(ctx, ref)
	if err != nil {
		return Totals{}, err
	}
	return s.Totals(ctx, cart)
}

func (s *service) productsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (s *service) save(ctx context.Context, ref Ref, cart Cart) error {
	if err := s.store.SaveCart(ctx, ref.SessionID, cart.toRaw()); err != nil {
		return storeError(err, "save cart")
	}
	return nil
}

func totalsOf(lines []Line) (Totals, error) {
	count := 0
	amounts := make([]int64, 0, len(lines))
	for _, line := range lines {
		count += line.Quantity
		amounts = append(amounts, line.LineTotalCents)
	}
	cents, err := money.Sum(amounts...)
	if err != nil {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "Your cart total is too large.")
	}
	return newTotals(count, cents), nil
}

func amountTooLarge(title string) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "The total for %s is too large.", title)
}

func storeError(err error, msg string) error {
	if errors.Is(err, session.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Your session has expired. Please reload the page.")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
