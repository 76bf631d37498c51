package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func TestStats(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	ctx := context.Background()

	orderSvc, err := orders.NewService(orders.NewRepository(conn))
	require.NoError(t, err)
	notify, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)
	reviewSvc, err := reviews.NewService(reviews.ServiceParams{DB: client, Purchases: orderSvc, Notifications: notify})
	require.NoError(t, err)
	reportSvc, err := reports.NewService(reports.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(conn, reviewSvc, reportSvc)
	require.NoError(t, err)

	seller := dbtest.CreateUser(t, conn, "seller", func(u *models.User) { u.IsSeller = true })
	buyer := dbtest.CreateUser(t, conn, "buyer")
	a := dbtest.CreateProduct(t, conn, seller.ID, "A", 100, nil)
	b := dbtest.CreateProduct(t, conn, seller.ID, "B", 100, nil)
	dbtest.CreatePurchase(t, conn, buyer.ID, a, 1)
	dbtest.CreatePurchase(t, conn, buyer.ID, b, 1)

	first, err := reviewSvc.Submit(ctx, reviews.SubmitInput{ProductID: a.ID, UserID: buyer.ID, Rating: 5, Body: "Great"})
	require.NoError(t, err)
	_, err = reviewSvc.Approve(ctx, first.ID)
	require.NoError(t, err)
	_, err = reviewSvc.Submit(ctx, reviews.SubmitInput{ProductID: b.ID, UserID: buyer.ID, Rating: 2, Body: "Meh"})
	require.NoError(t, err)
	_, err = reportSvc.Report(ctx, a.ID, buyer.ID, "Wrong category")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{
		Products:        2,
		Users:           2,
		Orders:          2,
		PendingReviews:  1,
		ApprovedReviews: 1,
		TotalReviews:    2,
		OpenReports:     1,
	}, *stats)
}
