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

// AcceptBidDTO is the input for the seller accepting one open bid.
type AcceptBidDTO struct {
	Caller       uuid.UUID
	BidIndex     uint64
	CollectionID uuid.UUID
	AssetID      uint64
}

// AcceptBidUseCase finalizes an auction: the accepted bid's locked funds go
// through settlement, the asset goes to that bidder, the listing goes to
// sold. There is no highest-bid rule, acceptance is the seller's choice among
// open bids; the others stay cancellable for refund.
type AcceptBidUseCase struct {
	listings   domain.ListingRepository
	bids       domain.BidRepository
	custody    *Custodian
	settlement *Settlement
	locks      *keymutex.KeyMutex
	pool       *pgxpool.Pool
	events     domain.EventPublisher
	now        func() time.Time
}

func NewAcceptBidUseCase(listings domain.ListingRepository, bids domain.BidRepository,
	custody *Custodian, settlement *Settlement,
	locks *keymutex.KeyMutex, pool *pgxpool.Pool, events domain.EventPublisher) *AcceptBidUseCase {
	return &AcceptBidUseCase{
		listings:   listings,
		bids:       bids,
		custody:    custody,
		settlement: settlement,
		locks:      locks,
		pool:       pool,
		events:     events,
		now:        time.Now,
	}
}

func (uc *AcceptBidUseCase) Execute(ctx context.Context, cmd AcceptBidDTO) error {
	key := domain.ListingKey{CollectionID: cmd.CollectionID, AssetID: cmd.AssetID}
	uc.locks.Lock(key.String())
	defer uc.locks.Unlock(key.String())

	listing, err := uc.listings.GetByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("accept bid %d on %s: %w", cmd.BidIndex, key, err)
	}
	if err := uc.settlement.EnsureConfigured(); err != nil {
		return fmt.Errorf("accept bid %d on %s: %w", cmd.BidIndex, key, err)
	}

	bid, err := listing.AcceptBid(cmd.BidIndex, cmd.Caller, uc.now())
	if err != nil {
		return fmt.Errorf("accept bid %d on %s: %w", cmd.BidIndex, key, err)
	}

	err = db.RunInTx(ctx, uc.pool, func(tx pgx.Tx) error {
		if err := uc.listings.Save(ctx, tx, listing); err != nil {
			return err
		}
		return uc.bids.Save(ctx, tx, listing.ID, bid)
	})
	if err != nil {
		return fmt.Errorf("accept bid %d on %s: %w", cmd.BidIndex, key, err)
	}

	// the bid's funds were locked at placement, settlement moves them out of
	// escrow now that the listing state is final
	if err := uc.settlement.Settle(ctx, bid.Medium, bid.Amount, listing.Seller); err != nil {
		return fmt.Errorf("accept bid %d on %s: %w", cmd.BidIndex, key, err)
	}
	if err := uc.custody.Release(ctx, key, bid.Bidder); err != nil {
		return fmt.Errorf("accept bid %d on %s: %w", cmd.BidIndex, key, err)
	}

	uc.events.Publish(domain.BidAccepted{
		BidIndex:     bid.Index,
		Bidder:       bid.Bidder,
		Seller:       listing.Seller,
		CollectionID: cmd.CollectionID,
		AssetID:      cmd.AssetID,
		Medium:       bid.Medium,
		Amount:       bid.Amount.String(),
	})

	log.Info("Auction finalized",
		zap.String("key", key.String()),
		zap.Uint64("bidIndex", bid.Index),
		zap.String("winner", bid.Bidder.String()),
	)
	return nil
}
