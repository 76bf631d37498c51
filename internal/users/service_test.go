package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{DB: client})
	require.NoError(t, err)
	return svc, client
}

func TestUpdateSettingsChangesPassword(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	hash, err := security.HashPassword("OldPass1!", config.PasswordConfig{})
	require.NoError(t, err)
	user := dbtest.CreateUser(t, client.DB(), "skipper", func(u *models.User) { u.PasswordHash = hash })

	business := "  Skipper Marine "
	_, err = svc.UpdateSettings(ctx, user.ID, SettingsInput{Email: "skip@example.com", NewPassword: "NewPass1!", CurrentPassword: "wrong"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateSettings(ctx, user.ID, SettingsInput{Email: "skip@example.com", NewPassword: "weak", CurrentPassword: "OldPass1!"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	dto, err := svc.UpdateSettings(ctx, user.ID, SettingsInput{
		Email:           "Skip@Example.com",
		BusinessName:    &business,
		NewPassword:     "NewPass1!",
		CurrentPassword: "OldPass1!",
	})
	require.NoError(t, err)
	require.Equal(t, "skip@example.com", dto.Email)
	require.Equal(t, "Skipper Marine", *dto.BusinessName)

	var stored models.User
	require.NoError(t, client.DB().First(&stored, "id = ?", user.ID).Error)
	ok, err := security.VerifyPassword("NewPass1!", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUpdateSettingsDuplicateEmail(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.CreateUser(t, client.DB(), "first")
	second := dbtest.CreateUser(t, client.DB(), "second")

	_, err := svc.UpdateSettings(context.Background(), second.ID, SettingsInput{Email: "first@example.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestToggleFlags(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	admin := dbtest.CreateUser(t, client.DB(), "admin", func(u *models.User) { u.IsAdmin = true })
	user := dbtest.CreateUser(t, client.DB(), "user")

	dto, err := svc.ToggleAdmin(ctx, admin.ID, user.ID)
	require.NoError(t, err)
	require.True(t, dto.IsAdmin)

	_, err = svc.ToggleAdmin(ctx, admin.ID, admin.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	dto, err = svc.ToggleSeller(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, dto.IsSeller)

	rating := 6.0
	_, err = svc.UpdateSellerDetails(ctx, user.ID, SellerDetailsInput{Rating: &rating})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeleteRemovesOwnedRows(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()
	admin := dbtest.CreateUser(t, conn, "admin", func(u *models.User) { u.IsAdmin = true })
	seller := dbtest.CreateUser(t, conn, "seller", func(u *models.User) { u.IsSeller = true })
	buyer := dbtest.CreateUser(t, conn, "buyer")
	product := dbtest.CreateProduct(t, conn, seller.ID, "Kayak", 10000, dbtest.IntPtr(2))

	order := models.Order{BuyerID: &buyer.ID, BuyerName: "b", BuyerEmail: "b@example.com", ShippingAddress: "x", TotalCents: 10000}
	require.NoError(t, conn.Create(&order).Error)
	require.NoError(t, conn.Create(&models.OrderItem{OrderID: order.ID, ProductID: &product.ID, SellerID: &seller.ID, Title: "Kayak", Quantity: 1, UnitPriceCents: 10000}).Error)
	require.NoError(t, conn.Create(&models.Favorite{UserID: buyer.ID, ProductID: product.ID}).Error)

	require.True(t, pkgerrors.IsCode(svc.Delete(ctx, admin.ID, admin.ID), pkgerrors.CodeForbidden))
	require.NoError(t, svc.Delete(ctx, admin.ID, seller.ID))

	var count int64
	require.NoError(t, conn.Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, conn.Model(&models.Favorite{}).Count(&count).Error)
	require.Zero(t, count)

	var item models.OrderItem
	require.NoError(t, conn.First(&item).Error)
	require.Nil(t, item.ProductID)
	require.Nil(t, item.SellerID)
	require.Equal(t, "Kayak", item.Title)
}
