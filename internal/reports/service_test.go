package reports

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestReportLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	ctx := context.Background()
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	seller := dbtest.CreateUser(t, conn, "seller", func(u *models.User) { u.IsSeller = true })
	reporter := dbtest.CreateUser(t, conn, "reporter")
	product := dbtest.CreateProduct(t, conn, seller.ID, "Fake watch", 100, nil)

	_, err = svc.Report(ctx, product.ID, reporter.ID, "  ")
	require.Equal(t, "Please provide a reason for reporting.", pkgerrors.PublicMessage(err))

	_, err = svc.Report(ctx, uuid.New(), reporter.ID, "spam")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	report, err := svc.Report(ctx, product.ID, reporter.ID, "Counterfeit")
	require.NoError(t, err)
	require.Equal(t, enums.ReportStatusPending, report.Status)

	open, err := svc.OpenCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), open)

	pending, err := svc.List(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "Fake watch", pending[0].ProductTitle)
	require.Equal(t, "reporter", pending[0].Reporter)

	_, err = svc.List(ctx, "bogus")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.True(t, pkgerrors.IsCode(svc.Resolve(ctx, report.ID, "pending"), pkgerrors.CodeValidation))
	require.True(t, pkgerrors.IsCode(svc.Resolve(ctx, uuid.New(), "dismissed"), pkgerrors.CodeNotFound))
	require.NoError(t, svc.Resolve(ctx, report.ID, "reviewed"))

	pending, err = svc.List(ctx, "pending")
	require.NoError(t, err)
	require.Empty(t, pending)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, enums.ReportStatusReviewed, all[0].Status)
}
