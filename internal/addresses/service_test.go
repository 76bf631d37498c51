package addresses

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func TestSaveIfMissingIgnoresDuplicates(t *testing.T) {
	client := dbtest.Open(t)
	user := dbtest.CreateUser(t, client.DB(), "buyer")
	svc := NewService(client.DB())
	ctx := context.Background()

	require.NoError(t, svc.SaveIfMissing(ctx, nil, user.ID, "1 Harbor Way"))
	require.NoError(t, svc.SaveIfMissing(ctx, nil, user.ID, " 1 Harbor Way "))
	require.NoError(t, svc.SaveIfMissing(ctx, nil, user.ID, ""))

	var count int64
	require.NoError(t, client.DB().Model(&models.Address{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSuggestMatchesCaseInsensitive(t *testing.T) {
	client := dbtest.Open(t)
	user := dbtest.CreateUser(t, client.DB(), "buyer")
	other := dbtest.CreateUser(t, client.DB(), "other")
	svc := NewService(client.DB())
	ctx := context.Background()

	require.NoError(t, svc.SaveIfMissing(ctx, nil, user.ID, "1 Harbor Way"))
	require.NoError(t, svc.SaveIfMissing(ctx, nil, user.ID, "22 Dock Street"))
	require.NoError(t, svc.SaveIfMissing(ctx, nil, other.ID, "3 Harbor Lane"))

	got, err := svc.Suggest(ctx, user.ID, "HARBOR")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "1 Harbor Way", got[0].Address)

	all, err := svc.Suggest(ctx, user.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}
