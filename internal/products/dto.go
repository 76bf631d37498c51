package product

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

// PlaceholderImage is shown for products without an image.
const PlaceholderImage = "/static/img/placeholder.png"

// ProductDTO is the full product representation.
type ProductDTO struct {
	ID                uuid.UUID  `json:"id"`
	SellerID          uuid.UUID  `json:"seller_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	PriceCents        int64      `json:"price_cents"`
	Price             string     `json:"price"`
	Stock             *int       `json:"stock"`
	InStock           bool       `json:"in_stock"`
	Category          string     `json:"category"`
	Condition         string     `json:"condition,omitempty"`
	Location          *string    `json:"location,omitempty"`
	ImageURL          *string    `json:"image_url,omitempty"`
	ViewCount         int        `json:"view_count"`
	IsAuction         bool       `json:"is_auction"`
	StartingBidCents  *int64     `json:"starting_bid_cents,omitempty"`
	CurrentBidCents   *int64     `json:"current_bid_cents,omitempty"`
	AuctionEnd        *time.Time `json:"auction_end,omitempty"`
	ReservePriceCents *int64     `json:"reserve_price_cents,omitempty"`
	BuyNowPriceCents  *int64     `json:"buy_now_price_cents,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ProductSummary is a product card in grids and carousels.
type ProductSummary struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"price_cents"`
	Price      string    `json:"price"`
	Stock      *int      `json:"stock"`
	InStock    bool      `json:"in_stock"`
	Category   string    `json:"category"`
	Condition  string    `json:"condition,omitempty"`
	ImageURL   string    `json:"image_url"`
	ViewCount  int       `json:"view_count"`
	IsAuction  bool      `json:"is_auction"`
	SellerID   uuid.UUID `json:"seller_id"`
	SellerName string    `json:"seller_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProductListResult is one page of the catalog.
type ProductListResult struct {
	Products   []ProductSummary         `json:"products"`
	Page       pagination.Page          `json:"page"`
	Filters    ProductListFilters       `json:"filters"`
	Categories []string                 `json:"categories"`
	Conditions []enums.ProductCondition `json:"conditions"`
}

// SellerSummary is the seller block of a product page.
type SellerSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Description *string   `json:"description,omitempty"`
	Rating      float64   `json:"rating"`
	TotalSales  int       `json:"total_sales"`
}

// DetailDTO is the product page payload.
type DetailDTO struct {
	Product     ProductDTO          `json:"product"`
	Seller      *SellerSummary      `json:"seller,omitempty"`
	Auction     *auctions.View      `json:"auction,omitempty"`
	Reviews     []reviews.ReviewDTO `json:"reviews"`
	ReviewStats reviews.Stats       `json:"review_stats"`
	Related     []ProductSummary    `json:"related"`
	IsFavorited bool                `json:"is_favorited"`
	CanReview   bool                `json:"can_review"`
}

// SiteStats are the home page counters.
type SiteStats struct {
	ActiveListings int64 `json:"active_listings"`
	TotalSellers   int64 `json:"total_sellers"`
	TotalBuyers    int64 `json:"total_buyers"`
	TotalUsers     int64 `json:"total_users"`
	TotalProducts  int64 `json:"total_products"`
}

// HomeDTO is the landing page payload.
type HomeDTO struct {
	Featured       []ProductSummary      `json:"featured"`
	Popular        []ProductSummary      `json:"popular"`
	RecentlyViewed []ProductSummary      `json:"recently_viewed"`
	EndingSoon     []auctions.ListingDTO `json:"ending_soon"`
	Stats          SiteStats             `json:"stats"`
}

// AutocompleteResult is one search suggestion.
type AutocompleteResult struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Price    string    `json:"price"`
	ImageURL string    `json:"image_url"`
	Category string    `json:"category"`
	URL      string    `json:"url"`
}

// CreateResult reports a posted listing.
type CreateResult struct {
	Product ProductDTO `json:"product"`
	Message string     `json:"message"`
}

// NewProductDTO maps the model to its API representation.
func NewProductDTO(p *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:                p.ID,
		SellerID:          p.SellerID,
		Title:             p.Title,
		Description:       p.Description,
		PriceCents:        p.PriceCents,
		Price:             money.Format(p.PriceCents),
		Stock:             p.Stock,
		InStock:           p.InStock(),
		Category:          p.Category,
		Condition:         p.Condition,
		Location:          p.Location,
		ImageURL:          p.ImageURL,
		ViewCount:         p.ViewCount,
		IsAuction:         p.IsAuction,
		StartingBidCents:  p.StartingBidCents,
		CurrentBidCents:   p.CurrentBidCents,
		AuctionEnd:        p.AuctionEnd,
		ReservePriceCents: p.ReservePriceCents,
		BuyNowPriceCents:  p.BuyNowPriceCents,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toSummary(p *models.Product) ProductSummary {
	s := ProductSummary{
		ID:         p.ID,
		Title:      p.Title,
		PriceCents: p.PriceCents,
		Price:      money.Format(p.PriceCents),
		Stock:      p.Stock,
		InStock:    p.InStock(),
		Category:   p.Category,
		Condition:  p.Condition,
		ImageURL:   PlaceholderImage,
		ViewCount:  p.ViewCount,
		IsAuction:  p.IsAuction,
		SellerID:   p.SellerID,
		CreatedAt:  p.CreatedAt,
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		s.ImageURL = *p.ImageURL
	}
	if p.Seller != nil {
		s.SellerName = p.Seller.DisplayName()
	}
	return s
}

// ToSummaries maps models to product cards.
func ToSummaries(rows []models.Product) []ProductSummary {
	out := make([]ProductSummary, 0, len(rows))
	for i := range rows {
		out = append(out, toSummary(&rows[i]))
	}
	return out
}

func toSellerSummary(u *models.User) *SellerSummary {
	if u == nil {
		return nil
	}
	return &SellerSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName(),
		Description: u.BusinessDescription,
		Rating:      u.Rating,
		TotalSales:  u.TotalSales,
	}
}
