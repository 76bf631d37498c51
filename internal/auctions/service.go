package auctions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	// EndingSoonWindow bounds the "ending soon" filters.
	EndingSoonWindow = 24 * time.Hour
	// ConversionDuration is how long converted boat listings stay open.
	ConversionDuration = 7 * 24 * time.Hour
	// DetailBidLimit caps the bid history shown on a product page.
	DetailBidLimit = 10

	fallbackStartingBidCents int64 = 100
)

// ListFilter narrows the auctions page.
type ListFilter struct {
	Category   string
	BoatsOnly  bool
	EndingSoon bool
}

// Service runs bidding and auction settlement.
type Service interface {
	PlaceBid(ctx context.Context, productID, bidderID uuid.UUID, amountCents int64) (*BidResult, error)
	EndAuction(ctx context.Context, productID, requesterID uuid.UUID) (*EndResult, error)
	CloseExpired(ctx context.Context, now time.Time, limit int) (int, error)
	ListActive(ctx context.Context, filter ListFilter) (*ListingPage, error)
	EndingSoon(ctx context.Context, limit int) ([]ListingDTO, error)
	MyBids(ctx context.Context, userID uuid.UUID) (*MyBids, error)
	History(ctx context.Context, productID uuid.UUID, limit int) ([]BidDTO, error)
	Describe(ctx context.Context, product *models.Product, viewerID *uuid.UUID) (*View, error)
	ConvertBoats(ctx context.Context) (*ConvertResult, error)
}

type ServiceParams struct {
	DB             *db.Client
	Notifications  notifications.Service
	Publisher      Publisher
	Metrics        *metrics.StorefrontMetrics
	Logger         *logger.Logger
	IncrementCents int64
	Now            func() time.Time
}

type service struct {
	db        *db.Client
	repo      *Repository
	notify    notifications.Service
	publisher Publisher
	metrics   *metrics.StorefrontMetrics
	logg      *logger.Logger
	increment int64
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications service required")
	}
	increment := params.IncrementCents
	if increment <= 0 {
		increment = DefaultIncrementCents
	}
	now := params.Now
	if now == nil {
		now = db.NowUTC
	}
	return &service{
		db:        params.DB,
		repo:      NewRepository(params.DB.DB()),
		notify:    params.Notifications,
		publisher: params.Publisher,
		metrics:   params.Metrics,
		logg:      params.Logger,
		increment: increment,
		now:       now,
	}, nil
}

func productLink(id uuid.UUID) string {
	return "/products/" + id.String()
}

func (s *service) PlaceBid(ctx context.Context, productID, bidderID uuid.UUID, amountCents int64) (*BidResult, error) {
	if amountCents <= 0 {
		s.metrics.BidPlaced("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid bid amount.")
	}

	var (
		result *BidResult
		event  BidEvent
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		now := s.now()

		product, err := repo.LockProduct(ctx, productID)
		if err != nil {
			return lookupError(err)
		}
		if !product.IsAuction {
			return pkgerrors.New(pkgerrors.CodeValidation, "This product is not an auction.")
		}
		if Status(product, now) == enums.AuctionStatusEnded || product.AuctionClosedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "This auction has ended.")
		}
		if product.SellerID == bidderID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "You cannot bid on your own auction.")
		}

		minimum := MinimumBid(product, s.increment)
		if amountCents < minimum {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("Bid must be at least %s (minimum %s increment)", money.Format(minimum), money.Format(s.increment))).
				WithDetails(map[string]any{
					"minimum_bid":       money.Format(minimum),
					"minimum_bid_cents": minimum,
				})
		}

		buyNow := product.BuyNowPriceCents != nil && amountCents >= *product.BuyNowPriceCents
		amount := amountCents
		if buyNow {
			amount = *product.BuyNowPriceCents
		}

		if err := repo.ClearWinning(ctx, product.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear winning bids")
		}
		bid := &models.Bid{
			ProductID:   product.ID,
			UserID:      bidderID,
			AmountCents: amount,
			IsWinning:   true,
		}
		if err := repo.CreateBid(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}

		updates := map[string]any{"current_bid_cents": amount}
		if buyNow {
			updates["auction_end"] = now
			updates["auction_closed_at"] = now
		}
		if err := repo.UpdateProduct(ctx, product.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update auction")
		}

		link := productLink(product.ID)
		if buyNow {
			err = s.notify.NotifyTx(ctx, tx, notifications.Message{
				UserID: product.SellerID,
				Type:   enums.NotificationTypeAuctionEnded,
				Text:   fmt.Sprintf("Your auction for %s sold via Buy Now at %s", product.Title, money.Format(amount)),
				Link:   link,
			})
		} else {
			err = s.notify.NotifyTx(ctx, tx, notifications.Message{
				UserID: product.SellerID,
				Type:   enums.NotificationTypeBidPlaced,
				Text:   fmt.Sprintf("New bid of %s placed on your auction: %s", money.Format(amount), product.Title),
				Link:   link,
			})
		}
		if err != nil {
			return err
		}

		if !buyNow {
			previous, err := repo.HighestLosingBid(ctx, product.ID, bidderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load outbid bidder")
			}
			if previous != nil {
				if err := s.notify.NotifyTx(ctx, tx, notifications.Message{
					UserID: previous.UserID,
					Type:   enums.NotificationTypeOutbid,
					Text:   fmt.Sprintf("You've been outbid on %s. Current bid: %s", product.Title, money.Format(amount)),
					Link:   link,
				}); err != nil {
					return err
				}
			}
		}

		result = &BidResult{
			Bid:        bidFromModel(bid),
			BuyNow:     buyNow,
			CurrentBid: money.Format(amount),
		}
		if buyNow {
			result.Message = fmt.Sprintf("Congratulations! You won the auction with Buy Now at %s!", money.Format(amount))
		} else {
			next := amount + s.increment
			result.Message = fmt.Sprintf("Bid placed successfully! You are currently the highest bidder at %s", money.Format(amount))
			result.MinimumNext = money.Format(next)
		}
		event = BidEvent{
			ProductID:       product.ID,
			BidID:           bid.ID,
			AmountCents:     amount,
			Amount:          money.Format(amount),
			MinimumBidCents: amount + s.increment,
			BuyNow:          buyNow,
			Ended:           buyNow,
			At:              now,
		}
		return nil
	})
	if err != nil {
		s.metrics.BidPlaced("rejected")
		return nil, err
	}

	if result.BuyNow {
		s.metrics.BidPlaced("buy_now")
		s.metrics.AuctionClosed("buy_now")
	} else {
		s.metrics.BidPlaced("accepted")
	}
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
	return result, nil
}

func (s *service) EndAuction(ctx context.Context, productID, requesterID uuid.UUID) (*EndResult, error) {
	var (
		result *EndResult
		event  BidEvent
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		now := s.now()

		product, err := repo.LockProduct(ctx, productID)
		if err != nil {
			return lookupError(err)
		}
		if !product.IsAuction {
			return pkgerrors.New(pkgerrors.CodeValidation, "This product is not an auction.")
		}
		if product.SellerID != requesterID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "You can only end your own auctions.")
		}
		if Status(product, now) == enums.AuctionStatusEnded || product.AuctionClosedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "This auction has already ended.")
		}

		if err := repo.UpdateProduct(ctx, product.ID, map[string]any{
			"auction_end":       now,
			"auction_closed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "end auction")
		}

		winner, err := repo.WinningBid(ctx, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load winning bid")
		}
		result = &EndResult{ProductID: product.ID, Message: "Auction ended with no bids."}
		event = BidEvent{ProductID: product.ID, Ended: true, At: now}
		if winner == nil {
			return nil
		}

		dto := bidFromModel(winner)
		result.Winner = &dto
		result.Message = fmt.Sprintf("Auction ended. Winning bid: %s", money.Format(winner.AmountCents))
		event.BidID = winner.ID
		event.AmountCents = winner.AmountCents
		event.Amount = dto.Amount
		return s.notify.NotifyTx(ctx, tx, notifications.Message{
			UserID: winner.UserID,
			Type:   enums.NotificationTypeAuctionWon,
			Text:   fmt.Sprintf("Congratulations! You won the auction for %s at %s", product.Title, money.Format(winner.AmountCents)),
			Link:   productLink(product.ID),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AuctionClosed("manual")
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
	return result, nil
}

// CloseExpired settles auctions whose end time passed without a manual close. Each auction
// settles in its own transaction; failures are collected and the sweep continues.
func (s *service) CloseExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	ids, err := s.repo.ExpiredUnsettled(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired auctions")
	}

	var (
		closed int
		errs   error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return closed, multierr.Append(errs, err)
		}
		settled, err := s.settle(ctx, id, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("settle auction %s: %w", id, err))
			continue
		}
		if settled {
			closed++
		}
	}
	return closed, errs
}

func (s *service) settle(ctx context.Context, productID uuid.UUID, now time.Time) (bool, error) {
	var (
		settled bool
		result  string
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		product, err := repo.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		if product.AuctionClosedAt != nil || product.AuctionEnd == nil || product.AuctionEnd.After(now) {
			return nil
		}
		if err := repo.UpdateProduct(ctx, product.ID, map[string]any{"auction_closed_at": now}); err != nil {
			return err
		}
		settled = true

		link := productLink(product.ID)
		winner, err := repo.WinningBid(ctx, product.ID)
		if err != nil {
			return err
		}
		if winner == nil {
			result = "unsold"
			return s.notify.NotifyTx(ctx, tx, notifications.Message{
				UserID: product.SellerID,
				Type:   enums.NotificationTypeAuctionEnded,
				Text:   fmt.Sprintf("Your auction for %s ended with no bids", product.Title),
				Link:   link,
			})
		}

		result = "sold"
		amount := money.Format(winner.AmountCents)
		if err := s.notify.NotifyTx(ctx, tx, notifications.Message{
			UserID: winner.UserID,
			Type:   enums.NotificationTypeAuctionWon,
			Text:   fmt.Sprintf("Congratulations! You won the auction for %s at %s", product.Title, amount),
			Link:   link,
		}); err != nil {
			return err
		}
		return s.notify.NotifyTx(ctx, tx, notifications.Message{
			UserID: product.SellerID,
			Type:   enums.NotificationTypeAuctionEnded,
			Text:   fmt.Sprintf("Your auction for %s ended with a winning bid of %s", product.Title, amount),
			Link:   link,
		})
	})
	if err != nil {
		return false, err
	}
	if settled {
		s.metrics.AuctionClosed(result)
		if s.publisher != nil {
			s.publisher.Publish(BidEvent{ProductID: productID, Ended: true, At: now})
		}
	}
	return settled, nil
}

func (s *service) ListActive(ctx context.Context, filter ListFilter) (*ListingPage, error) {
	now := s.now()
	active := ActiveFilter{Category: filter.Category}
	if filter.BoatsOnly {
		active.Categories = BoatCategories
	}
	if filter.EndingSoon {
		cutoff := now.Add(EndingSoonWindow)
		active.EndsBefore = &cutoff
	}

	rows, err := s.repo.ListActive(ctx, now, active)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list auctions")
	}
	categories, err := s.repo.ActiveCategories(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list auction categories")
	}

	page := &ListingPage{
		Auctions:   make([]ListingDTO, 0, len(rows)),
		Categories: categories,
	}
	for i := range rows {
		page.Auctions = append(page.Auctions, listingFromModel(&rows[i], now, s.increment))
	}
	return page, nil
}

func (s *service) EndingSoon(ctx context.Context, limit int) ([]ListingDTO, error) {
	now := s.now()
	cutoff := now.Add(EndingSoonWindow)
	rows, err := s.repo.ListActive(ctx, now, ActiveFilter{EndsBefore: &cutoff, Limit: limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ending auctions")
	}
	out := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		out = append(out, listingFromModel(&rows[i], now, s.increment))
	}
	return out, nil
}

func (s *service) MyBids(ctx context.Context, userID uuid.UUID) (*MyBids, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	now := s.now()
	out := &MyBids{
		Bids:    make([]MyBidDTO, 0, len(rows)),
		Winning: []MyBidDTO{},
	}
	for i := range rows {
		bid := &rows[i]
		item := MyBidDTO{
			Bid:       bidFromModel(bid),
			ProductID: bid.ProductID,
			Status:    enums.AuctionStatusEnded,
			IsWinning: bid.IsWinning,
		}
		if bid.Product != nil {
			item.Title = bid.Product.Title
			item.Status = Status(bid.Product, now)
		}
		out.Bids = append(out.Bids, item)
		if bid.IsWinning {
			out.Winning = append(out.Winning, item)
		}
	}
	return out, nil
}

func (s *service) History(ctx context.Context, productID uuid.UUID, limit int) ([]BidDTO, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, lookupError(err)
	}
	if !product.IsAuction {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "This product is not an auction.")
	}
	rows, err := s.repo.History(ctx, productID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bid history")
	}
	return bidsFromModels(rows), nil
}

// Describe builds the auction block of a product page, including the viewer's standing.
func (s *service) Describe(ctx context.Context, product *models.Product, viewerID *uuid.UUID) (*View, error) {
	if product == nil || !product.IsAuction {
		return nil, nil
	}
	view := NewView(product, s.now(), s.increment)

	count, err := s.repo.CountBids(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count bids")
	}
	view.BidCount = int(count)

	top, err := s.repo.TopBids(ctx, product.ID, DetailBidLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list top bids")
	}
	view.Bids = bidsFromModels(top)

	if viewerID != nil {
		mine, err := s.repo.HighestBidBy(ctx, product.ID, *viewerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load viewer bid")
		}
		if mine != nil {
			amount := mine.AmountCents
			view.ViewerHighestBid = &amount
			view.ViewerIsWinning = mine.IsWinning
		}
	}
	return &view, nil
}

// ConvertBoats forces every fixed-price boat listing into a week-long auction.
func (s *service) ConvertBoats(ctx context.Context) (*ConvertResult, error) {
	converted := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		now := s.now()
		rows, err := repo.BoatListingsToConvert(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list boat listings")
		}
		for i := range rows {
			p := &rows[i]
			starting := p.PriceCents
			if p.StartingBidCents != nil && *p.StartingBidCents > 0 {
				starting = *p.StartingBidCents
			}
			if starting <= 0 {
				starting = fallbackStartingBidCents
			}
			updates := map[string]any{
				"is_auction":         true,
				"starting_bid_cents": starting,
			}
			if p.AuctionEnd == nil || !p.AuctionEnd.After(now) {
				updates["auction_end"] = now.Add(ConversionDuration)
				updates["auction_closed_at"] = nil
			}
			if err := repo.UpdateProduct(ctx, p.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert boat listing")
			}
			converted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ConvertResult{Converted: converted, Message: "No boat listings required conversion."}
	if converted > 0 {
		result.Message = fmt.Sprintf("Converted %d boat listings to auctions.", converted)
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "converted", converted), "boat listings converted to auctions")
		}
	}
	return result, nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}
