package auctions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type auctionFixture struct {
	client *db.Client
	svc    Service
	hub    *Hub
	seller models.User
	alice  models.User
	bob    models.User
}

func newFixture(t *testing.T) *auctionFixture {
	t.Helper()
	return newFixtureAt(t, nil)
}

// newFixtureAt pins the service clock; nil keeps the wall clock.
func newFixtureAt(t *testing.T, now func() time.Time) *auctionFixture {
	t.Helper()
	client := dbtest.Open(t)
	notify, err := notifications.NewService(notifications.NewRepository(client.DB()))
	require.NoError(t, err)
	hub := NewHub()
	svc, err := NewService(ServiceParams{
		DB:            client,
		Notifications: notify,
		Publisher:     hub,
		Now:           now,
	})
	require.NoError(t, err)
	return &auctionFixture{
		client: client,
		svc:    svc,
		hub:    hub,
		seller: dbtest.CreateUser(t, client.DB(), "seller", func(u *models.User) { u.IsSeller = true }),
		alice:  dbtest.CreateUser(t, client.DB(), "alice"),
		bob:    dbtest.CreateUser(t, client.DB(), "bob"),
	}
}

func (f *auctionFixture) product(t *testing.T, id uuid.UUID) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.client.DB().First(&p, "id = ?", id).Error)
	return p
}

func (f *auctionFixture) bids(t *testing.T, productID uuid.UUID) []models.Bid {
	t.Helper()
	var rows []models.Bid
	require.NoError(t, f.client.DB().Where("product_id = ?", productID).Order("created_at").Find(&rows).Error)
	return rows
}

func (f *auctionFixture) notificationsFor(t *testing.T, userID uuid.UUID) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, f.client.DB().Where("user_id = ?", userID).Order("created_at").Find(&rows).Error)
	return rows
}

func TestPlaceBidMinimumAndBuyNowScenario(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	f := newFixtureAt(t, func() time.Time { return now })
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Vintage clock", 100, nil,
		dbtest.Auction(10000, 48*time.Hour),
		func(p *models.Product) { p.BuyNowPriceCents = dbtest.Int64Ptr(50000) })

	_, err := f.svc.PlaceBid(ctx, product.ID, f.alice.ID, 9000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Contains(t, err.Error(), "Bid must be at least $100.00")
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, "$100.00", details["minimum_bid"])
	require.Nil(t, f.product(t, product.ID).CurrentBidCents)

	res, err := f.svc.PlaceBid(ctx, product.ID, f.alice.ID, 10000)
	require.NoError(t, err)
	require.False(t, res.BuyNow)
	require.EqualValues(t, 10000, *f.product(t, product.ID).CurrentBidCents)

	_, err = f.svc.PlaceBid(ctx, product.ID, f.bob.ID, 10400)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "$105.00", pkgerrors.As(err).Details().(map[string]any)["minimum_bid"])
	require.EqualValues(t, 10000, *f.product(t, product.ID).CurrentBidCents)

	res, err = f.svc.PlaceBid(ctx, product.ID, f.bob.ID, 50000)
	require.NoError(t, err)
	require.True(t, res.BuyNow)
	require.Equal(t, "Congratulations! You won the auction with Buy Now at $500.00!", res.Message)

	closed := f.product(t, product.ID)
	require.EqualValues(t, 50000, *closed.CurrentBidCents)
	require.NotNil(t, closed.AuctionEnd)
	require.True(t, closed.AuctionEnd.Equal(now), "auction end %s, want %s", closed.AuctionEnd, now)
	require.NotNil(t, closed.AuctionClosedAt)
	require.True(t, closed.AuctionClosedAt.Equal(now))
	require.Equal(t, enums.AuctionStatusEnded, Status(&closed, now))

	winning := 0
	for _, b := range f.bids(t, product.ID) {
		if b.IsWinning {
			winning++
			require.EqualValues(t, 50000, b.AmountCents)
			require.Equal(t, f.bob.ID, b.UserID)
		}
	}
	require.Equal(t, 1, winning)

	_, err = f.svc.PlaceBid(ctx, product.ID, f.alice.ID, 100000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestPlaceBidBuyNowCapsAmountAtBuyNowPrice(t *testing.T) {
	f := newFixture(t)
	product := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Lamp", 100, nil,
		dbtest.Auction(100, time.Hour),
		func(p *models.Product) { p.BuyNowPriceCents = dbtest.Int64Ptr(2000) })

	res, err := f.svc.PlaceBid(context.Background(), product.ID, f.alice.ID, 9000)
	require.NoError(t, err)
	require.True(t, res.BuyNow)
	require.EqualValues(t, 2000, res.Bid.AmountCents)
	require.EqualValues(t, 2000, *f.product(t, product.ID).CurrentBidCents)
}

func TestPlaceBidRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fixed := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Chair", 1000, dbtest.IntPtr(3))
	ended := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Old", 100, nil, dbtest.Auction(100, -time.Minute))
	open := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Open", 100, nil, dbtest.Auction(100, time.Hour))

	_, err := f.svc.PlaceBid(ctx, fixed.ID, f.alice.ID, 1000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.PlaceBid(ctx, ended.ID, f.alice.ID, 1000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, "This auction has ended.", pkgerrors.PublicMessage(err))

	_, err = f.svc.PlaceBid(ctx, open.ID, f.seller.ID, 1000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.PlaceBid(ctx, uuid.New(), f.alice.ID, 1000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.PlaceBid(ctx, open.ID, f.alice.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.Empty(t, f.bids(t, open.ID))
	require.Nil(t, f.product(t, open.ID).CurrentBidCents)
}

func TestPlaceBidNotifiesSellerAndOutbidBidder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Guitar", 100, nil, dbtest.Auction(1000, time.Hour))

	_, err := f.svc.PlaceBid(ctx, product.ID, f.alice.ID, 1000)
	require.NoError(t, err)
	_, err = f.svc.PlaceBid(ctx, product.ID, f.bob.ID, 1500)
	require.NoError(t, err)

	sellerInbox := f.notificationsFor(t, f.seller.ID)
	require.Len(t, sellerInbox, 2)
	require.Equal(t, "New bid of $15.00 placed on your auction: Guitar", sellerInbox[1].Message)

	aliceInbox := f.notificationsFor(t, f.alice.ID)
	require.Len(t, aliceInbox, 1)
	require.Equal(t, enums.NotificationTypeOutbid, aliceInbox[0].Type)
	require.Equal(t, "You've been outbid on Guitar. Current bid: $15.00", aliceInbox[0].Message)
	require.Empty(t, f.notificationsFor(t, f.bob.ID))

	bids := f.bids(t, product.ID)
	require.Len(t, bids, 2)
	require.False(t, bids[0].IsWinning)
	require.True(t, bids[1].IsWinning)
}

func TestPlaceBidPublishesToSubscribers(t *testing.T) {
	f := newFixture(t)
	product := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Kayak", 100, nil, dbtest.Auction(200, time.Hour))
	events, cancel := f.hub.Subscribe(product.ID)
	defer cancel()

	_, err := f.svc.PlaceBid(context.Background(), product.ID, f.alice.ID, 250)
	require.NoError(t, err)

	select {
	case ev := <-events:
		require.Equal(t, product.ID, ev.ProductID)
		require.EqualValues(t, 250, ev.AmountCents)
		require.EqualValues(t, 750, ev.MinimumBidCents)
		require.False(t, ev.Ended)
	case <-time.After(time.Second):
		t.Fatal("expected bid event")
	}
}

func TestEndAuction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Desk", 100, nil, dbtest.Auction(1000, time.Hour))
	_, err := f.svc.PlaceBid(ctx, product.ID, f.alice.ID, 1200)
	require.NoError(t, err)

	_, err = f.svc.EndAuction(ctx, product.ID, f.bob.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	res, err := f.svc.EndAuction(ctx, product.ID, f.seller.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Winner)
	require.Equal(t, f.alice.ID, res.Winner.UserID)
	require.NotNil(t, f.product(t, product.ID).AuctionClosedAt)

	inbox := f.notificationsFor(t, f.alice.ID)
	require.Len(t, inbox, 1)
	require.Equal(t, "Congratulations! You won the auction for Desk at $12.00", inbox[0].Message)

	_, err = f.svc.EndAuction(ctx, product.ID, f.seller.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCloseExpiredSettlesOnce(t *testing.T) {
	client := dbtest.Open(t)
	notify, err := notifications.NewService(notifications.NewRepository(client.DB()))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := metrics.NewStorefrontMetrics(reg)
	svc, err := NewService(ServiceParams{DB: client, Notifications: notify, Metrics: m})
	require.NoError(t, err)

	seller := dbtest.CreateUser(t, client.DB(), "seller")
	buyer := dbtest.CreateUser(t, client.DB(), "buyer")
	sold := dbtest.CreateProduct(t, client.DB(), seller.ID, "Sold", 100, nil, dbtest.Auction(100, -time.Hour))
	unsold := dbtest.CreateProduct(t, client.DB(), seller.ID, "Unsold", 100, nil, dbtest.Auction(100, -time.Hour))
	dbtest.CreateProduct(t, client.DB(), seller.ID, "Running", 100, nil, dbtest.Auction(100, time.Hour))
	require.NoError(t, client.DB().Create(&models.Bid{ProductID: sold.ID, UserID: buyer.ID, AmountCents: 700, IsWinning: true}).Error)

	now := time.Now().UTC()
	closed, err := svc.CloseExpired(context.Background(), now, 10)
	require.NoError(t, err)
	require.Equal(t, 2, closed)

	var sellerInbox []models.Notification
	require.NoError(t, client.DB().Where("user_id = ?", seller.ID).Order("message").Find(&sellerInbox).Error)
	require.Len(t, sellerInbox, 2)
	require.Equal(t, "Your auction for Sold ended with a winning bid of $7.00", sellerInbox[0].Message)
	require.Equal(t, "Your auction for Unsold ended with no bids", sellerInbox[1].Message)

	var buyerInbox []models.Notification
	require.NoError(t, client.DB().Where("user_id = ?", buyer.ID).Find(&buyerInbox).Error)
	require.Len(t, buyerInbox, 1)
	require.Equal(t, enums.NotificationTypeAuctionWon, buyerInbox[0].Type)

	closed, err = svc.CloseExpired(context.Background(), now, 10)
	require.NoError(t, err)
	require.Zero(t, closed)

	var p models.Product
	require.NoError(t, client.DB().First(&p, "id = ?", unsold.ID).Error)
	require.NotNil(t, p.AuctionClosedAt)

	require.Equal(t, float64(1), counterValue(t, reg, "storefront_auctions_closed_total", "sold"))
	require.Equal(t, float64(1), counterValue(t, reg, "storefront_auctions_closed_total", "unsold"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestListActiveFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	category := func(c string) func(*models.Product) { return func(p *models.Product) { p.Category = c } }

	dbtest.CreateProduct(t, conn, f.seller.ID, "Sloop", 100, nil, dbtest.Auction(100, 3*time.Hour), category("Sailboats"))
	dbtest.CreateProduct(t, conn, f.seller.ID, "Painting", 100, nil, dbtest.Auction(100, 72*time.Hour), category("Art"))
	dbtest.CreateProduct(t, conn, f.seller.ID, "Expired", 100, nil, dbtest.Auction(100, -time.Hour), category("Art"))

	page, err := f.svc.ListActive(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Auctions, 2)
	require.Equal(t, "Sloop", page.Auctions[0].Title)
	require.Equal(t, []string{"Art", "Sailboats"}, page.Categories)

	page, err = f.svc.ListActive(ctx, ListFilter{BoatsOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Auctions, 1)
	require.True(t, page.Auctions[0].IsBoat)

	page, err = f.svc.ListActive(ctx, ListFilter{EndingSoon: true})
	require.NoError(t, err)
	require.Len(t, page.Auctions, 1)

	page, err = f.svc.ListActive(ctx, ListFilter{Category: "Art"})
	require.NoError(t, err)
	require.Len(t, page.Auctions, 1)
	require.Equal(t, "Painting", page.Auctions[0].Title)

	soon, err := f.svc.EndingSoon(ctx, 6)
	require.NoError(t, err)
	require.Len(t, soon, 1)
}

func TestMyBidsHistoryAndDescribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.client.DB(), f.seller.ID, "Camera", 100, nil, dbtest.Auction(1000, time.Hour))

	_, err := f.svc.PlaceBid(ctx, product.ID, f.alice.ID, 1000)
	require.NoError(t, err)
	_, err = f.svc.PlaceBid(ctx, product.ID, f.bob.ID, 1500)
	require.NoError(t, err)

	mine, err := f.svc.MyBids(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, mine.Bids, 1)
	require.Empty(t, mine.Winning)
	require.Equal(t, "Camera", mine.Bids[0].Title)

	history, err := f.svc.History(ctx, product.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	p := f.product(t, product.ID)
	view, err := f.svc.Describe(ctx, &p, &f.bob.ID)
	require.NoError(t, err)
	require.Equal(t, 2, view.BidCount)
	require.EqualValues(t, 2000, view.MinimumBidCents)
	require.True(t, view.ViewerIsWinning)
	require.EqualValues(t, 1500, *view.ViewerHighestBid)
	require.Equal(t, "bob", view.Bids[0].Bidder)
}

func TestConvertBoats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.client.DB()
	boat := dbtest.CreateProduct(t, conn, f.seller.ID, "Dinghy", 45000, dbtest.IntPtr(1),
		func(p *models.Product) { p.Category = "Dinghies" })
	dbtest.CreateProduct(t, conn, f.seller.ID, "Bike", 100, dbtest.IntPtr(1))

	res, err := f.svc.ConvertBoats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Converted)
	require.Equal(t, "Converted 1 boat listings to auctions.", res.Message)

	converted := f.product(t, boat.ID)
	require.True(t, converted.IsAuction)
	require.EqualValues(t, 45000, *converted.StartingBidCents)
	require.Equal(t, enums.AuctionStatusOpen, Status(&converted, time.Now().UTC()))

	res, err = f.svc.ConvertBoats(ctx)
	require.NoError(t, err)
	require.Zero(t, res.Converted)
	require.Equal(t, "No boat listings required conversion.", res.Message)
}
