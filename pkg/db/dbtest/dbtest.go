// Package dbtest opens isolated SQLite databases migrated with the storefront models.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Open returns a fresh in-memory database with every model migrated.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                db.NowUTC,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...))
	return db.Wrap(conn)
}

// CreateUser inserts a user with the given username and an email derived from it.
func CreateUser(t testing.TB, conn *gorm.DB, username string, mutate ...func(*models.User)) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "not-a-real-hash",
	}
	for _, fn := range mutate {
		fn(&user)
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// CreateProduct inserts a fixed-price product owned by seller.
func CreateProduct(t testing.TB, conn *gorm.DB, sellerID uuid.UUID, title string, priceCents int64, stock *int, mutate ...func(*models.Product)) models.Product {
	t.Helper()
	product := models.Product{
		SellerID:   sellerID,
		Title:      title,
		PriceCents: priceCents,
		Stock:      stock,
		Category:   "General",
		Condition:  "New",
	}
	for _, fn := range mutate {
		fn(&product)
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

// Auction turns a product fixture into an open auction ending after d.
func Auction(startingBidCents int64, d time.Duration) func(*models.Product) {
	return func(p *models.Product) {
		end := time.Now().UTC().Add(d)
		one := 1
		p.IsAuction = true
		p.StartingBidCents = &startingBidCents
		p.AuctionEnd = &end
		p.Stock = &one
	}
}

// IntPtr and Int64Ptr help build optional fixture fields.
func IntPtr(v int) *int { return &v }

func Int64Ptr(v int64) *int64 { return &v }

// CreatePurchase records a pending order of qty units of product for buyer.
func CreatePurchase(t testing.TB, conn *gorm.DB, buyerID uuid.UUID, product models.Product, qty int) models.Order {
	t.Helper()
	productID, sellerID := product.ID, product.SellerID
	order := models.Order{
		BuyerID:         &buyerID,
		BuyerName:       "Buyer",
		BuyerEmail:      "buyer@example.com",
		ShippingAddress: "1 Main St",
		TotalCents:      int64(qty) * product.PriceCents,
		Items: []models.OrderItem{{
			ProductID:      &productID,
			SellerID:       &sellerID,
			Title:          product.Title,
			Quantity:       qty,
			UnitPriceCents: product.PriceCents,
		}},
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}
