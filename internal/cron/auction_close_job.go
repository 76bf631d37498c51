package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultAuctionBatchSize = 100

// AuctionCloseJobParams configure the expired auction sweep.
type AuctionCloseJobParams struct {
	Logger    *logger.Logger
	Auctions  auctionCloser
	BatchSize int
}

type auctionCloser interface {
	CloseExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// NewAuctionCloseJob settles auctions whose end time has passed. Reads already derive the
// ended state from end_time; the sweep records the winner and notifies the parties.
func NewAuctionCloseJob(params AuctionCloseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auctions == nil {
		return nil, fmt.Errorf("auction service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAuctionBatchSize
	}
	return &auctionCloseJob{
		logg:     params.Logger,
		auctions: params.Auctions,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type auctionCloseJob struct {
	logg     *logger.Logger
	auctions auctionCloser
	batch    int
	now      func() time.Time
}

func (j *auctionCloseJob) Name() string { return "auction_close" }

func (j *auctionCloseJob) Run(ctx context.Context) error {
	closed, err := j.auctions.CloseExpired(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("close expired auctions: %w", err)
	}
	if closed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "auctions_closed", closed), "expired auctions closed")
	}
	return nil
}
