package checkout

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type memCarts map[string]map[string]int

func (m memCarts) LoadCart(_ context.Context, sessionID string) (map[string]int, error) {
	return m[sessionID], nil
}

func (m memCarts) SaveCart(_ context.Context, sessionID string, c map[string]int) error {
	m[sessionID] = c
	return nil
}

type checkoutFixture struct {
	client   *db.Client
	carts    memCarts
	cartSvc  cart.Service
	svc      Service
	registry *prometheus.Registry
	seller   models.User
	buyer    models.User
	ref      cart.Ref
}

func newFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	carts := memCarts{}
	cartSvc, err := cart.NewService(carts, product.NewRepository(conn), nil)
	require.NoError(t, err)
	notify, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)
	registry := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		TX:            client,
		Repo:          NewRepository(conn),
		Cart:          cartSvc,
		Addresses:     addresses.NewService(conn),
		Notifications: notify,
		Metrics:       metrics.NewStorefrontMetrics(registry),
	})
	require.NoError(t, err)

	return &checkoutFixture{
		client:   client,
		carts:    carts,
		cartSvc:  cartSvc,
		svc:      svc,
		registry: registry,
		seller:   dbtest.CreateUser(t, conn, "seller", func(u *models.User) { u.IsSeller = true }),
		buyer:    dbtest.CreateUser(t, conn, "buyer"),
		ref:      cart.Ref{SessionID: "sess"},
	}
}

func (f *checkoutFixture) input() PlaceOrderInput {
	return PlaceOrderInput{
		Ref:             f.ref,
		BuyerID:         &f.buyer.ID,
		BuyerName:       "Buyer One",
		BuyerEmail:      "buyer@example.com",
		ShippingAddress: "1 Main St, Springfield",
	}
}

func (f *checkoutFixture) reload(t *testing.T, id uuid.UUID) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.client.DB().First(&p, "id = ?", id).Error)
	return p
}

func (f *checkoutFixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(model).Count(&n).Error)
	return n
}

func (f *checkoutFixture) counter(t *testing.T, name, label string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, pair := range m.GetLabel() {
				if pair.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestStockScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Lamp", 1000, dbtest.IntPtr(3))

	added, err := f.cartSvc.Add(ctx, f.ref, p.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 3, added.Added)

	order, err := f.svc.PlaceOrder(ctx, f.input())
	require.NoError(t, err)
	require.Equal(t, int64(3000), order.TotalCents)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	require.Equal(t, 3, order.Items[0].Quantity)
	require.Equal(t, int64(1000), order.Items[0].UnitPriceCents)
	require.Equal(t, "Lamp", order.Items[0].Title)

	require.Equal(t, 0, *f.reload(t, p.ID).Stock)
	_, err = f.cartSvc.Add(ctx, f.ref, p.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestPlaceOrderSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	other := dbtest.CreateUser(t, conn, "other", func(u *models.User) { u.IsSeller = true })
	finite := dbtest.CreateProduct(t, conn, f.seller.ID, "Mug", 1200, dbtest.IntPtr(10))
	unlimited := dbtest.CreateProduct(t, conn, other.ID, "Ebook", 500, nil)

	_, err := f.cartSvc.Add(ctx, f.ref, finite.ID, 2)
	require.NoError(t, err)
	_, err = f.cartSvc.Add(ctx, f.ref, unlimited.ID, 4)
	require.NoError(t, err)

	order, err := f.svc.PlaceOrder(ctx, f.input())
	require.NoError(t, err)
	require.Equal(t, int64(2*1200+4*500), order.TotalCents)
	require.Equal(t, 6, order.ItemCount)

	require.Equal(t, 8, *f.reload(t, finite.ID).Stock)
	require.Nil(t, f.reload(t, unlimited.ID).Stock)

	var seller, otherSeller models.User
	require.NoError(t, conn.First(&seller, "id = ?", f.seller.ID).Error)
	require.NoError(t, conn.First(&otherSeller, "id = ?", other.ID).Error)
	require.Equal(t, 2, seller.TotalSales)
	require.Equal(t, 4, otherSeller.TotalSales)

	var notes []models.Notification
	require.NoError(t, conn.Where("type = ?", enums.NotificationTypeOrderPlaced).Find(&notes).Error)
	require.Len(t, notes, 2)

	var saved []models.Address
	require.NoError(t, conn.Where("user_id = ?", f.buyer.ID).Find(&saved).Error)
	require.Len(t, saved, 1)
	require.Equal(t, "1 Main St, Springfield", saved[0].AddressText)

	require.Empty(t, f.carts["sess"])
	require.Equal(t, float64(1), f.counter(t, "storefront_orders_placed_total", ""))
	require.Equal(t, float64(4400), f.counter(t, "storefront_order_revenue_cents_total", ""))
}

func TestPlaceOrderRepeatAddressIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Mug", 100, nil)

	for i := 0; i < 2; i++ {
		_, err := f.cartSvc.Add(ctx, f.ref, p.ID, 1)
		require.NoError(t, err)
		_, err = f.svc.PlaceOrder(ctx, f.input())
		require.NoError(t, err)
	}
	require.Equal(t, int64(2), f.count(t, &models.Order{}))
	require.Equal(t, int64(1), f.count(t, &models.Address{}))
}

func TestPlaceOrderRejectsWholeCartOnShortStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	ok := dbtest.CreateProduct(t, conn, f.seller.ID, "Plenty", 100, dbtest.IntPtr(10))
	short := dbtest.CreateProduct(t, conn, f.seller.ID, "Scarce", 100, dbtest.IntPtr(5))
	gone := dbtest.CreateProduct(t, conn, f.seller.ID, "Gone", 100, nil)

	_, err := f.cartSvc.Add(ctx, f.ref, ok.ID, 2)
	require.NoError(t, err)
	_, err = f.cartSvc.Add(ctx, f.ref, short.ID, 4)
	require.NoError(t, err)
	_, err = f.cartSvc.Add(ctx, f.ref, gone.ID, 1)
	require.NoError(t, err)

	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", short.ID).Update("stock", 1).Error)
	require.NoError(t, conn.Delete(&models.Product{}, "id = ?", gone.ID).Error)

	_, err = f.svc.PlaceOrder(ctx, f.input())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	messages := pkgerrors.UserMessages(err)
	require.ElementsMatch(t, []string{
		"Only 1 left of Scarce (you wanted 4).",
		"Product " + gone.ID.String() + " is no longer available.",
	}, messages)

	require.Equal(t, int64(0), f.count(t, &models.Order{}))
	require.Equal(t, int64(0), f.count(t, &models.OrderItem{}))
	require.Equal(t, 10, *f.reload(t, ok.ID).Stock)
	require.Equal(t, 1, *f.reload(t, short.ID).Stock)
	require.Len(t, f.carts["sess"], 3)
	require.Equal(t, float64(1), f.counter(t, "storefront_checkout_rejected_total", "insufficient_stock"))
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := f.input()
	_, err := f.svc.PlaceOrder(ctx, input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "Your cart is empty.", pkgerrors.PublicMessage(err))

	p := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Mug", 100, nil)
	_, err = f.cartSvc.Add(ctx, f.ref, p.ID, 1)
	require.NoError(t, err)

	input.BuyerName = "   "
	_, err = f.svc.PlaceOrder(ctx, input)
	require.Equal(t, "Please fill all fields.", pkgerrors.PublicMessage(err))

	input = f.input()
	input.BuyerEmail = "not-an-email"
	_, err = f.svc.PlaceOrder(ctx, input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.Equal(t, int64(0), f.count(t, &models.Order{}))
	require.Len(t, f.carts["sess"], 1)
}

func TestGuestCheckoutSkipsAddressBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Mug", 100, nil)
	_, err := f.cartSvc.Add(ctx, f.ref, p.ID, 1)
	require.NoError(t, err)

	input := f.input()
	input.BuyerID = nil
	order, err := f.svc.PlaceOrder(ctx, input)
	require.NoError(t, err)
	require.Nil(t, order.BuyerID)
	require.Equal(t, int64(0), f.count(t, &models.Address{}))
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Preview(ctx, f.ref, &f.buyer.ID)
	require.Equal(t, "Your cart is empty.", pkgerrors.PublicMessage(err))

	p := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Mug", 1250, nil)
	_, err = f.cartSvc.Add(ctx, f.ref, p.ID, 2)
	require.NoError(t, err)
	require.NoError(t, addresses.NewService(f.client.DB()).SaveIfMissing(ctx, nil, f.buyer.ID, "9 Elm St"))

	preview, err := f.svc.Preview(ctx, f.ref, &f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, preview.Items, 1)
	require.Equal(t, "$25.00", preview.Totals.Total)
	require.Equal(t, "buyer", preview.Prefill.Name)
	require.Equal(t, f.buyer.Email, preview.Prefill.Email)
	require.Len(t, preview.Addresses, 1)

	anon, err := f.svc.Preview(ctx, f.ref, nil)
	require.NoError(t, err)
	require.Empty(t, anon.Addresses)
	require.Empty(t, anon.Prefill.Name)
}

func TestPlaceOrderCapsHugeQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Anvil", 100000, nil)

	added, err := f.cartSvc.Add(ctx, f.ref, p.ID, 1<<60)
	require.NoError(t, err)
	require.Equal(t, cart.MaxLineQuantity, added.Added)
	require.Equal(t, int64(cart.MaxLineQuantity)*100000, added.Totals.TotalCents)

	order, err := f.svc.PlaceOrder(ctx, f.input())
	require.NoError(t, err)
	require.Equal(t, int64(cart.MaxLineQuantity)*100000, order.TotalCents)
	require.Equal(t, cart.MaxLineQuantity, order.Items[0].Quantity)

	var seller models.User
	require.NoError(t, f.client.DB().First(&seller, "id = ?", f.seller.ID).Error)
	require.Equal(t, cart.MaxLineQuantity, seller.TotalSales)
}

func TestPlaceOrderRejectsTotalsPastInt64(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Yacht", math.MaxInt64/2, nil)
	f.carts["sess"] = map[string]int{p.ID.String(): 3}

	_, err := f.svc.PlaceOrder(ctx, f.input())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "The total for Yacht is too large.", pkgerrors.PublicMessage(err))
	require.Equal(t, int64(0), f.count(t, &models.Order{}))
	require.Len(t, f.carts["sess"], 1)
}
