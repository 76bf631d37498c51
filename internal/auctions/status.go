package auctions

import (
	"fmt"
	"math"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

// DefaultIncrementCents is the fixed raise over the current bid.
const DefaultIncrementCents int64 = 500

// BoatCategories are always sold by auction.
var BoatCategories = []string{"Sailboats", "Powerboats", "Dinghies"}

// IsBoatCategory reports whether category is auction-only.
func IsBoatCategory(category string) bool {
	for _, c := range BoatCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Status derives the auction state. A missing end time counts as ended.
func Status(p *models.Product, now time.Time) enums.AuctionStatus {
	if p == nil || p.AuctionEnd == nil || !p.AuctionEnd.After(now) {
		return enums.AuctionStatusEnded
	}
	return enums.AuctionStatusOpen
}

// TimeRemaining renders the time left until end for display.
func TimeRemaining(end *time.Time, now time.Time) string {
	if end == nil || !end.After(now) {
		return "Ended"
	}
	left := end.Sub(now)
	days := int(left / (24 * time.Hour))
	left -= time.Duration(days) * 24 * time.Hour
	hours := int(left / time.Hour)
	left -= time.Duration(hours) * time.Hour
	minutes := int(left / time.Minute)
	left -= time.Duration(minutes) * time.Minute
	seconds := int(left / time.Second)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
}

// MinimumBid is current bid plus increment, or the starting bid before the first bid. It
// saturates at the largest representable amount.
func MinimumBid(p *models.Product, incrementCents int64) int64 {
	if p.CurrentBidCents != nil {
		minimum, err := money.Sum(*p.CurrentBidCents, incrementCents)
		if err != nil {
			return math.MaxInt64
		}
		return minimum
	}
	if p.StartingBidCents != nil {
		return *p.StartingBidCents
	}
	return 0
}

// View is the auction block of a product page.
type View struct {
	Status            enums.AuctionStatus `json:"status"`
	StartingBidCents  *int64              `json:"starting_bid_cents,omitempty"`
	CurrentBidCents   *int64              `json:"current_bid_cents,omitempty"`
	CurrentBid        string              `json:"current_bid,omitempty"`
	MinimumBidCents   int64               `json:"minimum_bid_cents"`
	MinimumBid        string              `json:"minimum_bid"`
	BuyNowPriceCents  *int64              `json:"buy_now_price_cents,omitempty"`
	ReservePriceCents *int64              `json:"reserve_price_cents,omitempty"`
	ReserveMet        bool                `json:"reserve_met"`
	AuctionEnd        *time.Time          `json:"auction_end,omitempty"`
	TimeRemaining     string              `json:"time_remaining"`
	BidCount          int                 `json:"bid_count"`
	Bids              []BidDTO            `json:"bids,omitempty"`
	ViewerHighestBid  *int64              `json:"viewer_highest_bid_cents,omitempty"`
	ViewerIsWinning   bool                `json:"viewer_is_winning"`
}

// NewView builds the display block. The reserve is informational only.
func NewView(p *models.Product, now time.Time, incrementCents int64) View {
	minimum := MinimumBid(p, incrementCents)
	v := View{
		Status:            Status(p, now),
		StartingBidCents:  p.StartingBidCents,
		CurrentBidCents:   p.CurrentBidCents,
		MinimumBidCents:   minimum,
		MinimumBid:        money.Format(minimum),
		BuyNowPriceCents:  p.BuyNowPriceCents,
		ReservePriceCents: p.ReservePriceCents,
		AuctionEnd:        p.AuctionEnd,
		TimeRemaining:     TimeRemaining(p.AuctionEnd, now),
	}
	if p.CurrentBidCents != nil {
		v.CurrentBid = money.Format(*p.CurrentBidCents)
	}
	v.ReserveMet = p.ReservePriceCents == nil ||
		(p.CurrentBidCents != nil && *p.CurrentBidCents >= *p.ReservePriceCents)
	return v
}
