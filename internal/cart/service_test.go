package cart

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type memStore struct {
	carts map[string]map[string]int
}

func newMemStore(sessionIDs ...string) *memStore {
	s := &memStore{carts: map[string]map[string]int{}}
	for _, id := range sessionIDs {
		s.carts[id] = nil
	}
	return s
}

func (m *memStore) LoadCart(_ context.Context, sessionID string) (map[string]int, error) {
	cart, ok := m.carts[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return cart, nil
}

func (m *memStore) SaveCart(_ context.Context, sessionID string, cart map[string]int) error {
	if _, ok := m.carts[sessionID]; !ok {
		return session.ErrNotFound
	}
	m.carts[sessionID] = cart
	return nil
}

type cartFixture struct {
	client *db.Client
	store  *memStore
	svc    Service
	seller models.User
	ref    Ref
}

func newFixture(t *testing.T) *cartFixture {
	t.Helper()
	client := dbtest.Open(t)
	store := newMemStore("sess")
	svc, err := NewService(store, product.NewRepository(client.DB()), nil)
	require.NoError(t, err)
	return &cartFixture{
		client: client,
		store:  store,
		svc:    svc,
		seller: dbtest.CreateUser(t, client.DB(), "seller", func(u *models.User) { u.IsSeller = true }),
		ref:    Ref{SessionID: "sess"},
	}
}

func (f *cartFixture) product(t *testing.T, title string, price int64, stock *int) models.Product {
	t.Helper()
	return dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, title, price, stock)
}

func TestAddClampsToStockThenReportsOutOfStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Mug", 1000, dbtest.IntPtr(3))

	res, err := f.svc.Add(ctx, f.ref, p.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 3, res.Added)
	require.Equal(t, 5, res.Requested)
	require.Equal(t, "Only 3 added to cart (limited stock).", res.Message)
	require.Equal(t, 3, res.Cart[p.ID])
	require.Equal(t, Totals{ItemCount: 3, TotalCents: 3000, Total: "$30.00"}, res.Totals)

	_, err = f.svc.Add(ctx, f.ref, p.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, "Item is out of stock.", pkgerrors.PublicMessage(err))

	cart, err := f.svc.Get(ctx, f.ref)
	require.NoError(t, err)
	require.Equal(t, 3, cart[p.ID])
}

func TestAddDefaultsQuantityAndIgnoresStockWhenUnlimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Ebook", 500, nil)

	res, err := f.svc.Add(ctx, f.ref, p.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Added)
	require.Equal(t, "Added to cart.", res.Message)

	res, err = f.svc.Add(ctx, f.ref, p.ID, 100)
	require.NoError(t, err)
	require.Equal(t, 101, res.Cart[p.ID])
}

func TestAddMissingProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Add(context.Background(), f.ref, uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Empty(t, f.store.carts["sess"])
}

func TestGetHydratesFromCookie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Mug", 1000, nil)

	ref := Ref{SessionID: "sess", Cookie: `{"` + p.ID.String() + `": 2, "junk": 4}`}
	cart, err := f.svc.Get(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, Cart{p.ID: 2}, cart)
	require.Equal(t, map[string]int{p.ID.String(): 2}, f.store.carts["sess"])

	cart, err = f.svc.Get(ctx, Ref{SessionID: "sess", Cookie: "not json"})
	require.NoError(t, err)
	require.Equal(t, 2, cart[p.ID])
}

func TestGetWithBadCookieIsEmpty(t *testing.T) {
	f := newFixture(t)
	cart, err := f.svc.Get(context.Background(), Ref{SessionID: "sess", Cookie: "{broken"})
	require.NoError(t, err)
	require.Empty(t, cart)
}

func TestGetUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), Ref{SessionID: "missing"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestUpdateRemovesClampsAndDrops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.product(t, "Keep", 100, nil)
	clamp := f.product(t, "Clamp", 200, dbtest.IntPtr(2))
	drop := f.product(t, "Drop", 300, nil)
	_, err := f.svc.Add(ctx, f.ref, keep.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, f.ref, drop.ID, 1)
	require.NoError(t, err)

	res, err := f.svc.Update(ctx, f.ref, map[uuid.UUID]int{
		keep.ID:    4,
		clamp.ID:   9,
		drop.ID:    0,
		uuid.New(): 3,
	})
	require.NoError(t, err)
	require.Equal(t, Cart{keep.ID: 4, clamp.ID: 2}, res.Cart)
	require.Equal(t, []string{"Quantity for Clamp reduced to available stock (2)."}, res.Notices)
	require.Equal(t, int64(800), res.Totals.TotalCents)
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 100, nil)
	b := f.product(t, "B", 100, nil)
	_, err := f.svc.Add(ctx, f.ref, a.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, f.ref, b.ID, 1)
	require.NoError(t, err)

	cart, err := f.svc.Remove(ctx, f.ref, a.ID)
	require.NoError(t, err)
	require.Equal(t, Cart{b.ID: 1}, cart)

	cart, err = f.svc.Remove(ctx, f.ref, uuid.New())
	require.NoError(t, err)
	require.Len(t, cart, 1)

	require.NoError(t, f.svc.Clear(ctx, f.ref))
	summary, err := f.svc.Summary(ctx, f.ref)
	require.NoError(t, err)
	require.Equal(t, 0, summary.ItemCount)
}

func TestTotalsUseLivePricesAndSkipMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Mug", 1000, nil)
	cart := Cart{p.ID: 2, uuid.New(): 5}

	totals, err := f.svc.Totals(ctx, cart)
	require.NoError(t, err)
	require.Equal(t, 2, totals.ItemCount)
	require.Equal(t, int64(2000), totals.TotalCents)

	require.NoError(t, f.client.DB().Model(&models.Product{}).Where("id = ?", p.ID).Update("price_cents", 1250).Error)
	totals, err = f.svc.Totals(ctx, cart)
	require.NoError(t, err)
	require.Equal(t, "$25.00", totals.Total)

	lines, err := f.svc.Lines(ctx, cart)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, int64(2500), lines[0].LineTotalCents)
	require.Equal(t, f.seller.ID, lines[0].SellerID)
}

func TestMergeTakesMaxPerProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()
	f.store.carts["sess"] = map[string]int{a.String(): 2, b.String(): 5}
	cookie, err := Cart{a: 4, b: 1, c: 3}.Encode()
	require.NoError(t, err)

	merged, err := f.svc.Merge(ctx, Ref{SessionID: "sess", Cookie: cookie})
	require.NoError(t, err)
	require.Equal(t, Cart{a: 4, b: 5, c: 3}, merged)
	require.Equal(t, map[string]int{a.String(): 4, b.String(): 5, c.String(): 3}, f.store.carts["sess"])
}

func TestView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Mug", 1000, nil)
	_, err := f.svc.Add(ctx, f.ref, p.ID, 2)
	require.NoError(t, err)

	view, err := f.svc.View(ctx, f.ref)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, "$10.00", view.Lines[0].UnitPrice)
	require.Equal(t, "$20.00", view.Totals.Total)
}

func TestAddStopsAtLineLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Anvil", 100000, nil)

	res, err := f.svc.Add(ctx, f.ref, p.ID, 1<<60)
	require.NoError(t, err)
	require.Equal(t, MaxLineQuantity, res.Added)
	require.Equal(t, "Only 999 added to cart (limit 999 per item).", res.Message)
	require.Equal(t, MaxLineQuantity, res.Totals.ItemCount)
	require.Equal(t, int64(MaxLineQuantity)*100000, res.Totals.TotalCents)

	_, err = f.svc.Add(ctx, f.ref, p.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, MaxLineQuantity, f.store.carts["sess"][p.ID.String()])
}

func TestUpdateCapsAtLineLimit(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Bolt", 10, nil)

	res, err := f.svc.Update(context.Background(), f.ref, map[uuid.UUID]int{p.ID: 5000})
	require.NoError(t, err)
	require.Equal(t, Cart{p.ID: MaxLineQuantity}, res.Cart)
	require.Equal(t, []string{"Quantity for Bolt reduced to the limit of 999."}, res.Notices)
}

func TestTotalsRejectAmountsPastInt64(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Yacht", math.MaxInt64/2, nil)

	_, err := f.svc.Totals(context.Background(), Cart{p.ID: 3})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "The total for Yacht is too large.", pkgerrors.PublicMessage(err))
}
