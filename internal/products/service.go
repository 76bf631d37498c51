package product

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	FeaturedLimit       = 9
	PopularLimit        = 30
	HomeRecentLimit     = 8
	RecentlyViewedLimit = 20
	EndingSoonLimit     = 6
	RelatedLimit        = 4
	AutocompleteLimit   = 10
	AutocompleteMinLen  = 2
	// ViewHistoryLimit is how many product views are kept per user.
	ViewHistoryLimit = 50

	DefaultAuctionDays = 7
	MaxAuctionDays     = 30
)

// Service exposes catalog browsing and listing management.
type Service interface {
	List(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	Detail(ctx context.Context, productID uuid.UUID, viewerID *uuid.UUID) (*DetailDTO, error)
	Autocomplete(ctx context.Context, q string) ([]AutocompleteResult, error)
	Home(ctx context.Context, viewerID *uuid.UUID) (*HomeDTO, error)
	RecordView(ctx context.Context, viewerID *uuid.UUID, productID uuid.UUID) error
	RecentlyViewed(ctx context.Context, userID uuid.UUID) ([]ProductSummary, error)
	CreateProduct(ctx context.Context, sellerID uuid.UUID, input CreateProductInput) (*CreateResult, error)
	ListBySeller(ctx context.Context, userID uuid.UUID) ([]ProductDTO, error)
	AdminList(ctx context.Context) ([]ProductSummary, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID, actor Actor) error
	DeleteViewsOlderThan(ctx context.Context, now time.Time, age time.Duration) (int64, error)
}

// Actor identifies who is mutating a listing.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// ImageUpload is an image file attached to a listing form.
type ImageUpload struct {
	Filename string
	Body     io.Reader
}

// CreateProductInput holds the post-ad form. Money values are in cents.
type CreateProductInput struct {
	Title             string
	Description       string
	PriceCents        *int64
	Stock             *int
	Category          string
	Condition         string
	Location          string
	ImageURL          string
	Image             *ImageUpload
	IsAuction         bool
	StartingBidCents  *int64
	DurationDays      int
	ReservePriceCents *int64
	BuyNowPriceCents  *int64
}

// UpdateProductInput holds optional admin edits.
type UpdateProductInput struct {
	Title          *string
	Description    *string
	PriceCents     *int64
	Stock          *int
	UnlimitedStock bool
	Category       *string
	Condition      *string
	Location       *string
	ImageURL       *string
	SellerID       *uuid.UUID
}

type imageStore interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

type auctionReader interface {
	Describe(ctx context.Context, product *models.Product, viewerID *uuid.UUID) (*auctions.View, error)
	EndingSoon(ctx context.Context, limit int) ([]auctions.ListingDTO, error)
}

type reviewReader interface {
	ListApproved(ctx context.Context, productID uuid.UUID) ([]reviews.ReviewDTO, error)
	Stats(ctx context.Context, productID uuid.UUID) (reviews.Stats, error)
	CanReview(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type favoriteChecker interface {
	IsFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// ServiceParams groups the product service dependencies. Images is optional; without it
// uploads are rejected.
type ServiceParams struct {
	DB        *db.Client
	Auctions  auctionReader
	Reviews   reviewReader
	Favorites favoriteChecker
	Images    imageStore
	Logger    *logger.Logger
	Now       func() time.Time
}

// service implements the product service.
type service struct {
	repo      *Repository
	dbClient  *db.Client
	auctions  auctionReader
	reviews   reviewReader
	favorites favoriteChecker
	images    imageStore
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db client required")
	}
	if params.Auctions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "auction service required")
	}
	if params.Reviews == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "review service required")
	}
	if params.Favorites == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "favorites service required")
	}
	now := params.Now
	if now == nil {
		now = db.NowUTC
	}
	return &service{
		repo:      NewRepository(params.DB.DB()),
		dbClient:  params.DB,
		auctions:  params.Auctions,
		reviews:   params.Reviews,
		favorites: params.Favorites,
		images:    params.Images,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	input.Pagination = input.Pagination.Normalize()
	if input.Filters.Sort == "" {
		input.Filters.Sort = enums.ProductSortNewest
	}
	rows, total, err := s.repo.ListProductSummaries(ctx, productListQuery{
		Pagination: input.Pagination,
		Filters:    input.Filters,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return &ProductListResult{
		Products:   ToSummaries(rows),
		Page:       pagination.NewPage(input.Pagination, total),
		Filters:    input.Filters,
		Categories: categories,
		Conditions: enums.ProductConditions(),
	}, nil
}

func (s *service) Detail(ctx context.Context, productID uuid.UUID, viewerID *uuid.UUID) (*DetailDTO, error) {
	product, err := s.repo.FindWithSeller(ctx, productID)
	if err != nil {
		return nil, notFound(err)
	}

	detail := &DetailDTO{
		Product: *NewProductDTO(product),
		Seller:  toSellerSummary(product.Seller),
	}

	if product.IsAuction {
		if detail.Auction, err = s.auctions.Describe(ctx, product, viewerID); err != nil {
			return nil, err
		}
	}
	if detail.Reviews, err = s.reviews.ListApproved(ctx, product.ID); err != nil {
		return nil, err
	}
	if detail.ReviewStats, err = s.reviews.Stats(ctx, product.ID); err != nil {
		return nil, err
	}

	related, err := s.repo.Related(ctx, product, RelatedLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list related products")
	}
	detail.Related = ToSummaries(related)

	if viewerID != nil {
		if detail.IsFavorited, err = s.favorites.IsFavorite(ctx, *viewerID, product.ID); err != nil {
			return nil, err
		}
		if detail.CanReview, err = s.reviews.CanReview(ctx, *viewerID, product.ID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// Autocomplete returns up to ten in-stock matches. Queries shorter than two characters
// return nothing.
func (s *service) Autocomplete(ctx context.Context, q string) ([]AutocompleteResult, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < AutocompleteMinLen {
		return []AutocompleteResult{}, nil
	}
	rows, err := s.repo.Autocomplete(ctx, q, AutocompleteLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "autocomplete products")
	}
	out := make([]AutocompleteResult, 0, len(rows))
	for i := range rows {
		summary := toSummary(&rows[i])
		out = append(out, AutocompleteResult{
			ID:       summary.ID,
			Title:    summary.Title,
			Price:    summary.Price,
			ImageURL: summary.ImageURL,
			Category: summary.Category,
			URL:      "/products/" + summary.ID.String(),
		})
	}
	return out, nil
}

func (s *service) Home(ctx context.Context, viewerID *uuid.UUID) (*HomeDTO, error) {
	featured, err := s.repo.Featured(ctx, FeaturedLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list featured products")
	}
	popular, err := s.repo.Popular(ctx, PopularLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list popular products")
	}
	counts, err := s.repo.SiteCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count site stats")
	}
	endingSoon, err := s.auctions.EndingSoon(ctx, EndingSoonLimit)
	if err != nil {
		return nil, err
	}

	home := &HomeDTO{
		Featured:       ToSummaries(featured),
		Popular:        ToSummaries(popular),
		RecentlyViewed: []ProductSummary{},
		EndingSoon:     endingSoon,
		Stats: SiteStats{
			ActiveListings: counts.ActiveListings,
			TotalSellers:   counts.TotalSellers,
			TotalBuyers:    counts.TotalUsers - counts.TotalSellers,
			TotalUsers:     counts.TotalUsers,
			TotalProducts:  counts.TotalProducts,
		},
	}
	if viewerID != nil {
		recent, err := s.repo.RecentlyViewed(ctx, *viewerID, HomeRecentLimit, true)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recently viewed")
		}
		home.RecentlyViewed = ToSummaries(recent)
	}
	return home, nil
}

// RecordView bumps the view counter and, for signed-in viewers, moves the product to the
// front of their history.
func (s *service) RecordView(ctx context.Context, viewerID *uuid.UUID, productID uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.IncrementViewCount(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment view count")
		}
		if !found {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		if viewerID == nil {
			return nil
		}
		if err := repo.ReplaceView(ctx, *viewerID, productID, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record product view")
		}
		if _, err := repo.TrimViews(ctx, *viewerID, ViewHistoryLimit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "trim product views")
		}
		return nil
	})
}

func (s *service) RecentlyViewed(ctx context.Context, userID uuid.UUID) ([]ProductSummary, error) {
	rows, err := s.repo.RecentlyViewed(ctx, userID, RecentlyViewedLimit, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recently viewed")
	}
	return ToSummaries(rows), nil
}

// CreateProduct validates a post-ad submission and stores the listing. Boat categories are
// always auctions.
func (s *service) CreateProduct(ctx context.Context, sellerID uuid.UUID, input CreateProductInput) (*CreateResult, error) {
	seller, err := s.repo.FindUser(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if !seller.IsSeller {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You must be a seller to post ads. Please contact support to become a seller.")
	}

	product, message, err := buildProduct(sellerID, input, s.now())
	if err != nil {
		return nil, err
	}

	if input.Image != nil {
		if s.images == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Image uploads are disabled.")
		}
		url, err := s.images.Upload(ctx, input.Image.Filename, input.Image.Body)
		if err != nil {
			return nil, err
		}
		product.ImageURL = &url
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if product.ImageURL != nil && input.Image != nil {
			_ = s.images.Remove(ctx, *product.ImageURL)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return &CreateResult{Product: *NewProductDTO(created), Message: message}, nil
}

func buildProduct(sellerID uuid.UUID, input CreateProductInput, now time.Time) (*models.Product, string, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Title is required.")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Category is required.")
	}
	condition, err := normalizeCondition(input.Condition)
	if err != nil {
		return nil, "", err
	}

	product := &models.Product{
		SellerID:    sellerID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    category,
		Condition:   condition,
		ImageURL:    normalizeImageURL(input.ImageURL),
	}
	if loc := strings.TrimSpace(input.Location); loc != "" {
		product.Location = &loc
	}

	boat := auctions.IsBoatCategory(category)
	if !input.IsAuction && !boat {
		if input.PriceCents == nil {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Price is required.")
		}
		if *input.PriceCents < 0 || (input.Stock != nil && *input.Stock < 0) {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Price and stock must be non-negative.")
		}
		product.PriceCents = *input.PriceCents
		product.Stock = input.Stock
		return product, "Your ad has been posted successfully!", nil
	}

	var starting int64
	if input.StartingBidCents != nil {
		starting = *input.StartingBidCents
	}
	if boat && starting <= 0 && input.PriceCents != nil {
		starting = *input.PriceCents
	}
	if starting <= 0 {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Starting bid must be greater than 0.")
	}
	days := input.DurationDays
	if days == 0 {
		days = DefaultAuctionDays
	}
	if days < 1 || days > MaxAuctionDays {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Auction duration must be between 1 and 30 days.")
	}
	if input.ReservePriceCents != nil && *input.ReservePriceCents <= 0 {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Reserve price must be greater than 0.")
	}
	if input.BuyNowPriceCents != nil && *input.BuyNowPriceCents < starting {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "Buy now price must be at least the starting bid.")
	}

	one := 1
	end := now.Add(time.Duration(days) * 24 * time.Hour)
	product.IsAuction = true
	product.Stock = &one
	product.PriceCents = starting
	product.StartingBidCents = &starting
	product.AuctionEnd = &end
	product.ReservePriceCents = input.ReservePriceCents
	product.BuyNowPriceCents = input.BuyNowPriceCents

	if boat {
		return product, "Boat listing posted as an auction (boats are auction-only).", nil
	}
	return product, "Your auction has been posted successfully!", nil
}

// ListBySeller backs the "my listings" page and is limited to sellers.
func (s *service) ListBySeller(ctx context.Context, userID uuid.UUID) ([]ProductDTO, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsSeller {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You must be a seller to view listings.")
	}
	rows, err := s.repo.ListBySeller(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) AdminList(ctx context.Context) ([]ProductSummary, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return ToSummaries(rows), nil
}

// UpdateProduct applies admin edits. Auction fields are not editable here.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, notFound(err)
	}

	values, err := applyUpdate(input)
	if err != nil {
		return nil, err
	}
	if input.SellerID != nil {
		if _, err := s.repo.FindUser(ctx, *input.SellerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "Seller not found.")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
		}
	}
	if len(values) > 0 {
		if err := s.repo.UpdateColumns(ctx, productID, values); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
	}
	updated, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, notFound(err)
	}
	return NewProductDTO(updated), nil
}

func applyUpdate(input UpdateProductInput) (map[string]any, error) {
	values := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Title is required.")
		}
		values["title"] = title
	}
	if input.Description != nil {
		values["description"] = strings.TrimSpace(*input.Description)
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid price or stock.")
		}
		values["price_cents"] = *input.PriceCents
	}
	switch {
	case input.UnlimitedStock:
		values["stock"] = nil
	case input.Stock != nil:
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid price or stock.")
		}
		values["stock"] = *input.Stock
	}
	if input.Category != nil {
		values["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Condition != nil {
		condition, err := normalizeCondition(*input.Condition)
		if err != nil {
			return nil, err
		}
		values["condition"] = condition
	}
	if input.Location != nil {
		if loc := strings.TrimSpace(*input.Location); loc != "" {
			values["location"] = loc
		} else {
			values["location"] = nil
		}
	}
	if input.ImageURL != nil {
		if url := normalizeImageURL(*input.ImageURL); url != nil {
			values["image_url"] = *url
		}
	}
	if input.SellerID != nil {
		values["seller_id"] = *input.SellerID
	}
	return values, nil
}

// DeleteProduct removes a listing. Only its seller or an admin may delete it.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID, actor Actor) error {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return notFound(err)
	}
	if product.SellerID != actor.UserID && !actor.IsAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to delete this product.")
	}
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).DeleteProduct(ctx, productID)
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}

	if s.images != nil && product.ImageURL != nil {
		if err := s.images.Remove(ctx, *product.ImageURL); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "image_url", *product.ImageURL), "remove product image failed")
		}
	}
	return nil
}

// DeleteViewsOlderThan purges view history older than now-age.
func (s *service) DeleteViewsOlderThan(ctx context.Context, now time.Time, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retention age must be positive")
	}
	deleted, err := s.repo.DeleteViewsBefore(ctx, now.Add(-age))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product views")
	}
	return deleted, nil
}

func normalizeCondition(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	condition, err := enums.ParseProductCondition(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Condition must be new, used or refurbished.")
	}
	return string(condition), nil
}

// normalizeImageURL treats bare file names as static images.
func normalizeImageURL(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "/") {
		raw = "/static/img/" + raw
	}
	return &raw
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}
