package auctions

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
)

// BidDTO is one row of a bid history.
type BidDTO struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	UserID      uuid.UUID `json:"user_id"`
	Bidder      string    `json:"bidder,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount"`
	IsWinning   bool      `json:"is_winning"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListingDTO is an auction card on the auctions page.
type ListingDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Seller    string    `json:"seller,omitempty"`
	IsBoat    bool      `json:"is_boat"`
	Auction   View      `json:"auction"`
}

// ListingPage is the auctions page payload.
type ListingPage struct {
	Auctions   []ListingDTO `json:"auctions"`
	Categories []string     `json:"categories"`
}

// MyBidDTO pairs one of the user's bids with its auction.
type MyBidDTO struct {
	Bid       BidDTO              `json:"bid"`
	ProductID uuid.UUID           `json:"product_id"`
	Title     string              `json:"title"`
	Status    enums.AuctionStatus `json:"status"`
	IsWinning bool                `json:"is_winning"`
}

// MyBids is the "my bids" page payload.
type MyBids struct {
	Bids    []MyBidDTO `json:"bids"`
	Winning []MyBidDTO `json:"winning"`
}

// BidResult reports an accepted bid.
type BidResult struct {
	Bid         BidDTO `json:"bid"`
	BuyNow      bool   `json:"buy_now"`
	Message     string `json:"message"`
	CurrentBid  string `json:"current_bid"`
	MinimumNext string `json:"minimum_next_bid,omitempty"`
}

// EndResult reports a manually ended auction.
type EndResult struct {
	ProductID uuid.UUID `json:"product_id"`
	Winner    *BidDTO   `json:"winner,omitempty"`
	Message   string    `json:"message"`
}

// ConvertResult reports how many boat listings became auctions.
type ConvertResult struct {
	Converted int    `json:"converted"`
	Message   string `json:"message"`
}

func bidFromModel(b *models.Bid) BidDTO {
	dto := BidDTO{
		ID:          b.ID,
		ProductID:   b.ProductID,
		UserID:      b.UserID,
		AmountCents: b.AmountCents,
		Amount:      money.Format(b.AmountCents),
		IsWinning:   b.IsWinning,
		CreatedAt:   b.CreatedAt,
	}
	if b.User != nil {
		dto.Bidder = b.User.Username
	}
	return dto
}

func bidsFromModels(rows []models.Bid) []BidDTO {
	out := make([]BidDTO, 0, len(rows))
	for i := range rows {
		out = append(out, bidFromModel(&rows[i]))
	}
	return out
}

func listingFromModel(p *models.Product, now time.Time, increment int64) ListingDTO {
	dto := ListingDTO{
		ProductID: p.ID,
		Title:     p.Title,
		Category:  p.Category,
		ImageURL:  p.ImageURL,
		IsBoat:    IsBoatCategory(p.Category),
		Auction:   NewView(p, now, increment),
	}
	if p.Seller != nil {
		dto.Seller = p.Seller.DisplayName()
	}
	return dto
}
