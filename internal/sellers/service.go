package sellers

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/auctions"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TopProductsLimit  = 5
	RecentOrdersLimit = 10
)

type reviewStats interface {
	SellerStats(ctx context.Context, sellerID uuid.UUID) (reviews.Stats, error)
}

// Service backs the public seller page and the seller dashboard.
type Service interface {
	Profile(ctx context.Context, sellerID uuid.UUID) (*ProfileDTO, error)
	Dashboard(ctx context.Context, sellerID uuid.UUID) (*DashboardDTO, error)
}

type service struct {
	repo    *Repository
	reviews reviewStats
	now     func() time.Time
}

func NewService(repo *Repository, reviews reviewStats, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sellers repository required")
	}
	if reviews == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "review stats required")
	}
	if now == nil {
		now = db.NowUTC
	}
	return &service{repo: repo, reviews: reviews, now: now}, nil
}

func (s *service) Profile(ctx context.Context, sellerID uuid.UUID) (*ProfileDTO, error) {
	seller, err := s.repo.FindSeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	rows, err := s.repo.Products(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller products")
	}
	stats, err := s.reviews.SellerStats(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return &ProfileDTO{
		ID:          seller.ID,
		Username:    seller.Username,
		DisplayName: seller.DisplayName(),
		Description: seller.BusinessDescription,
		Location:    seller.Location,
		Rating:      seller.Rating,
		TotalSales:  seller.TotalSales,
		MemberSince: seller.CreatedAt,
		Reviews:     stats,
		Products:    product.ToSummaries(rows),
	}, nil
}

// Dashboard aggregates the signed-in seller's catalog and sales.
func (s *service) Dashboard(ctx context.Context, sellerID uuid.UUID) (*DashboardDTO, error) {
	seller, err := s.repo.FindSeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if !seller.IsSeller {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Seller access required.")
	}

	counts, err := s.repo.ProductCounts(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count seller products")
	}
	totals, err := s.repo.SalesTotals(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum seller sales")
	}
	top, err := s.repo.TopProducts(ctx, sellerID, TopProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list top products")
	}
	categories, err := s.repo.CategorySales(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum category sales")
	}
	recent, err := s.repo.RecentOrders(ctx, sellerID, RecentOrdersLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent orders")
	}
	now := s.now()
	open, err := s.repo.ActiveAuctions(ctx, sellerID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active auctions")
	}
	bidCounts, err := s.repo.BidCounts(ctx, productIDs(open))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count bids")
	}
	stats, err := s.reviews.SellerStats(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	out := &DashboardDTO{
		ProductCount:   counts.Total,
		ActiveListings: counts.Active,
		OrderCount:     totals.Orders,
		UnitsSold:      totals.Units,
		RevenueCents:   totals.RevenueCents,
		Revenue:        formatCents(totals.RevenueCents),
		Reviews:        stats,
		TopProducts:    make([]ProductSales, 0, len(top)),
		Categories:     make([]CategorySales, 0, len(categories)),
		RecentOrders:   make([]RecentOrder, 0, len(recent)),
		ActiveAuctions: make([]ActiveAuction, 0, len(open)),
	}
	for _, row := range top {
		out.TopProducts = append(out.TopProducts, ProductSales{
			ProductID:    row.ProductID,
			Title:        row.Title,
			Units:        row.Units,
			RevenueCents: row.RevenueCents,
			Revenue:      formatCents(row.RevenueCents),
		})
	}
	for _, row := range categories {
		out.Categories = append(out.Categories, CategorySales{
			Category:     row.Category,
			Units:        row.Units,
			RevenueCents: row.RevenueCents,
			Revenue:      formatCents(row.RevenueCents),
		})
	}
	for _, order := range recent {
		line := RecentOrder{
			ID:        order.ID,
			BuyerName: order.BuyerName,
			Status:    order.Status,
			CreatedAt: order.CreatedAt,
		}
		for _, item := range order.Items {
			line.Units += item.Quantity
			line.TotalCents += item.LineTotalCents()
		}
		line.Total = formatCents(line.TotalCents)
		out.RecentOrders = append(out.RecentOrders, line)
	}
	for i := range open {
		p := &open[i]
		view := auctions.NewView(p, now, auctions.DefaultIncrementCents)
		out.ActiveAuctions = append(out.ActiveAuctions, ActiveAuction{
			ProductID:     p.ID,
			Title:         p.Title,
			CurrentBid:    view.CurrentBid,
			MinimumBid:    view.MinimumBid,
			BidCount:      bidCounts[p.ID],
			AuctionEnd:    p.AuctionEnd,
			TimeRemaining: view.TimeRemaining,
		})
	}
	return out, nil
}

func productIDs(rows []models.Product) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
