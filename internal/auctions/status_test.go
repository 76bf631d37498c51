package auctions

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func ptr[T any](v T) *T { return &v }

func TestStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, enums.AuctionStatusEnded, Status(&models.Product{}, now))
	require.Equal(t, enums.AuctionStatusEnded, Status(&models.Product{AuctionEnd: ptr(now)}, now))
	require.Equal(t, enums.AuctionStatusOpen, Status(&models.Product{AuctionEnd: ptr(now.Add(time.Second))}, now))
}

func TestTimeRemaining(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		end  *time.Time
		want string
	}{
		{"missing", nil, "Ended"},
		{"elapsed", ptr(now.Add(-time.Minute)), "Ended"},
		{"days", ptr(now.Add(50*time.Hour + 5*time.Minute)), "2d 2h 5m"},
		{"hours", ptr(now.Add(3*time.Hour + 20*time.Minute)), "3h 20m"},
		{"minutes", ptr(now.Add(4*time.Minute + 9*time.Second)), "4m 9s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, TimeRemaining(tc.end, now))
		})
	}
}

func TestMinimumBid(t *testing.T) {
	p := &models.Product{StartingBidCents: ptr(int64(10000))}
	require.EqualValues(t, 10000, MinimumBid(p, DefaultIncrementCents))

	p.CurrentBidCents = ptr(int64(10000))
	require.EqualValues(t, 10500, MinimumBid(p, DefaultIncrementCents))

	p.CurrentBidCents = ptr(int64(math.MaxInt64 - 100))
	require.EqualValues(t, int64(math.MaxInt64), MinimumBid(p, DefaultIncrementCents))
}

func TestNewViewReserveFlag(t *testing.T) {
	now := time.Now().UTC()
	p := &models.Product{
		StartingBidCents:  ptr(int64(1000)),
		ReservePriceCents: ptr(int64(5000)),
		AuctionEnd:        ptr(now.Add(time.Hour)),
	}
	view := NewView(p, now, DefaultIncrementCents)
	require.False(t, view.ReserveMet)
	require.Equal(t, "$10.00", view.MinimumBid)
	require.Equal(t, enums.AuctionStatusOpen, view.Status)

	p.CurrentBidCents = ptr(int64(5000))
	require.True(t, NewView(p, now, DefaultIncrementCents).ReserveMet)
}

func TestIsBoatCategory(t *testing.T) {
	require.True(t, IsBoatCategory("Sailboats"))
	require.False(t, IsBoatCategory("sailboats"))
	require.False(t, IsBoatCategory("Bikes"))
}
