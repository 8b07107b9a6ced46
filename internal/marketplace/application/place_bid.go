package application

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/registry"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/db"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/keymutex"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PlaceBidDTO is the input for placing an auction bid. Amount is in the
// medium's smallest unit and is locked in escrow at placement, not merely
// authorized.
type PlaceBidDTO struct {
	Bidder       uuid.UUID
	Medium       domain.Medium
	Amount       *big.Int
	CollectionID uuid.UUID
	AssetID      uint64
}

// PlaceBidUseCase locks the bidder's funds and appends an open bid to the
// listing's bid log with the next dense index.
type PlaceBidUseCase struct {
	listings domain.ListingRepository
	bids     domain.BidRepository
	registry *registry.Registry
	ledger   domain.Ledger
	operator uuid.UUID
	locks    *keymutex.KeyMutex
	pool     *pgxpool.Pool
	events   domain.EventPublisher
	now      func() time.Time
}

func NewPlaceBidUseCase(listings domain.ListingRepository, bids domain.BidRepository, reg *registry.Registry,
	ledger domain.Ledger, operator uuid.UUID,
	locks *keymutex.KeyMutex, pool *pgxpool.Pool, events domain.EventPublisher) *PlaceBidUseCase {
	return &PlaceBidUseCase{
		listings: listings,
		bids:     bids,
		registry: reg,
		ledger:   ledger,
		operator: operator,
		locks:    locks,
		pool:     pool,
		events:   events,
		now:      time.Now,
	}
}

func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	key := domain.ListingKey{CollectionID: cmd.CollectionID, AssetID: cmd.AssetID}
	uc.locks.Lock(key.String())
	defer uc.locks.Unlock(key.String())

	if cmd.Amount == nil || cmd.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("place bid on %s: %w", key, domain.ErrInvalidAmount)
	}
	// the medium must be registered and enabled even though no conversion
	// happens at placement
	if _, err := uc.registry.Medium(cmd.Medium); err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", key, err)
	}

	listing, err := uc.listings.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", key, err)
	}
	if err := listing.EnsureBiddable(); err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", key, err)
	}

	if err := lockFunds(ctx, uc.ledger, cmd.Medium, uc.operator, cmd.Bidder, cmd.Amount); err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", key, err)
	}

	bid, err := listing.PlaceBid(cmd.Bidder, cmd.Medium, cmd.Amount, uc.now())
	if err != nil {
		if refundErr := releaseFunds(ctx, uc.ledger, cmd.Medium, uc.operator, cmd.Bidder, cmd.Amount); refundErr != nil {
			log.Error("Failed to refund bidder after rejected bid",
				zap.String("key", key.String()),
				zap.Error(refundErr),
			)
		}
		return nil, fmt.Errorf("place bid on %s: %w", key, err)
	}

	err = db.RunInTx(ctx, uc.pool, func(tx pgx.Tx) error {
		if err := uc.listings.Save(ctx, tx, listing); err != nil {
			return err
		}
		return uc.bids.Save(ctx, tx, listing.ID, bid)
	})
	if err != nil {
		if refundErr := releaseFunds(ctx, uc.ledger, cmd.Medium, uc.operator, cmd.Bidder, cmd.Amount); refundErr != nil {
			log.Error("Failed to refund bidder after save error",
				zap.String("key", key.String()),
				zap.Error(refundErr),
			)
		}
		return nil, fmt.Errorf("place bid on %s: %w", key, err)
	}

	uc.events.Publish(domain.BidPlaced{
		BidIndex:     bid.Index,
		Bidder:       cmd.Bidder,
		CollectionID: cmd.CollectionID,
		AssetID:      cmd.AssetID,
		Medium:       cmd.Medium,
		Amount:       bid.Amount.String(),
	})
	return bid, nil
}
