package orders

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type fixture struct {
	svc     Service
	conn    *gorm.DB
	buyer   models.User
	seller  models.User
	product models.Product
	order   models.Order
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	buyer := dbtest.CreateUser(t, conn, "buyer")
	seller := dbtest.CreateUser(t, conn, "seller", func(u *models.User) { u.IsSeller = true })
	product := dbtest.CreateProduct(t, conn, seller.ID, "Life Jacket", 4500, dbtest.IntPtr(5))

	order := models.Order{
		BuyerID:         &buyer.ID,
		BuyerName:       "Buyer One",
		BuyerEmail:      "buyer@example.com",
		ShippingAddress: "1 Harbor Way",
		TotalCents:      9000,
		Items: []models.OrderItem{{
			ProductID:      &product.ID,
			SellerID:       &seller.ID,
			Title:          product.Title,
			Quantity:       2,
			UnitPriceCents: 4500,
		}},
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), &order))

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, buyer: buyer, seller: seller, product: product, order: order}
}

func TestConfirmationVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.svc.Confirmation(ctx, f.order.ID, Viewer{UserID: f.buyer.ID})
	require.NoError(t, err)
	require.Equal(t, "$90.00", dto.Total)
	require.Equal(t, 2, dto.ItemCount)
	require.Len(t, dto.Items, 1)
	require.EqualValues(t, 9000, dto.Items[0].LineTotalCents)

	_, err = f.svc.Confirmation(ctx, f.order.ID, Viewer{UserID: f.seller.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Confirmation(ctx, f.order.ID, Viewer{UserID: uuid.New(), IsAdmin: true})
	require.NoError(t, err)

	_, err = f.svc.Confirmation(ctx, uuid.New(), Viewer{IsAdmin: true})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestHasPurchased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.HasPurchased(ctx, f.buyer.ID, f.product.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.svc.HasPurchased(ctx, f.seller.ID, f.product.ID)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.svc.HasPurchased(ctx, uuid.Nil, f.product.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.svc.ListForBuyer(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	list, err := f.svc.AdminList(ctx, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.EqualValues(t, 1, list.Page.Total)
	require.False(t, list.Page.HasNext)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportXLSX(context.Background(), &buf))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	orders := file.Sheet[exportSheetName]
	require.NotNil(t, orders)
	require.Len(t, orders.Rows, 2)
	require.Equal(t, "Order ID", orders.Rows[0].Cells[0].Value)
	require.Equal(t, f.order.ID.String(), orders.Rows[1].Cells[0].Value)
	require.Equal(t, "$90.00", orders.Rows[1].Cells[6].Value)

	items := file.Sheet[exportItemsSheet]
	require.NotNil(t, items)
	require.Len(t, items.Rows, 2)
	require.Equal(t, "Life Jacket", items.Rows[1].Cells[2].Value)
}
