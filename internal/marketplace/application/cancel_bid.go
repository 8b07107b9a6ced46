package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/db"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/keymutex"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CancelBidDTO is the input for cancelling an open bid.
type CancelBidDTO struct {
	Caller       uuid.UUID
	BidIndex     uint64
	CollectionID uuid.UUID
	AssetID      uint64
}

// CancelBidUseCase refunds the bid's locked amount to its bidder and marks it
// cancelled. Works against sold listings too: losing bids are refunded this
// way, acceptance never auto-refunds them.
type CancelBidUseCase struct {
	listings domain.ListingRepository
	bids     domain.BidRepository
	ledger   domain.Ledger
	operator uuid.UUID
	locks    *keymutex.KeyMutex
	pool     *pgxpool.Pool
	events   domain.EventPublisher
	now      func() time.Time
}

func NewCancelBidUseCase(listings domain.ListingRepository, bids domain.BidRepository,
	ledger domain.Ledger, operator uuid.UUID,
	locks *keymutex.KeyMutex, pool *pgxpool.Pool, events domain.EventPublisher) *CancelBidUseCase {
	return &CancelBidUseCase{
		listings: listings,
		bids:     bids,
		ledger:   ledger,
		operator: operator,
		locks:    locks,
		pool:     pool,
		events:   events,
		now:      time.Now,
	}
}

func (uc *CancelBidUseCase) Execute(ctx context.Context, cmd CancelBidDTO) error {
	key := domain.ListingKey{CollectionID: cmd.CollectionID, AssetID: cmd.AssetID}
	uc.locks.Lock(key.String())
	defer uc.locks.Unlock(key.String())

	listing, err := uc.listings.GetByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("cancel bid %d on %s: %w", cmd.BidIndex, key, err)
	}

	bid, err := listing.CancelBid(cmd.BidIndex, cmd.Caller, uc.now())
	if err != nil {
		return fmt.Errorf("cancel bid %d on %s: %w", cmd.BidIndex, key, err)
	}

	err = db.RunInTx(ctx, uc.pool, func(tx pgx.Tx) error {
		if err := uc.listings.Save(ctx, tx, listing); err != nil {
			return err
		}
		return uc.bids.Save(ctx, tx, listing.ID, bid)
	})
	if err != nil {
		return fmt.Errorf("cancel bid %d on %s: %w", cmd.BidIndex, key, err)
	}

	// state is cancelled, only now give control to the ledger
	if err := releaseFunds(ctx, uc.ledger, bid.Medium, uc.operator, bid.Bidder, bid.Amount); err != nil {
		log.Error("Bid refund failed after cancellation",
			zap.String("key", key.String()),
			zap.Uint64("bidIndex", bid.Index),
			zap.Error(err),
		)
		return fmt.Errorf("cancel bid %d on %s: refund: %w", cmd.BidIndex, key, err)
	}

	uc.events.Publish(domain.BidCancelled{
		BidIndex:     bid.Index,
		Bidder:       bid.Bidder,
		CollectionID: cmd.CollectionID,
		AssetID:      cmd.AssetID,
		Medium:       bid.Medium,
		Amount:       bid.Amount.String(),
	})
	return nil
}
