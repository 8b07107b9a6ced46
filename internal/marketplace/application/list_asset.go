package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/db"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/keymutex"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ListAssetDTO is the input for listing an asset, fixed-price or auction.
type ListAssetDTO struct {
	Seller         uuid.UUID
	CollectionID   uuid.UUID
	AssetID        uint64
	ReferencePrice *big.Int
	Deadline       time.Time
	Mode           domain.ListingMode
}

// ListAssetUseCase deposits the asset into escrow and records the listing.
// One use case serves both modes, the state machines only diverge afterwards.
type ListAssetUseCase struct {
	listings   domain.ListingRepository
	custody    *Custodian
	settlement *Settlement
	locks      *keymutex.KeyMutex
	pool       *pgxpool.Pool
	events     domain.EventPublisher
	now        func() time.Time
}

func NewListAssetUseCase(listings domain.ListingRepository, custody *Custodian, settlement *Settlement,
	locks *keymutex.KeyMutex, pool *pgxpool.Pool, events domain.EventPublisher) *ListAssetUseCase {
	return &ListAssetUseCase{
		listings:   listings,
		custody:    custody,
		settlement: settlement,
		locks:      locks,
		pool:       pool,
		events:     events,
		now:        time.Now,
	}
}

func (uc *ListAssetUseCase) Execute(ctx context.Context, cmd ListAssetDTO) (*domain.Listing, error) {
	key := domain.ListingKey{CollectionID: cmd.CollectionID, AssetID: cmd.AssetID}
	uc.locks.Lock(key.String())
	defer uc.locks.Unlock(key.String())

	// sales would be unsettleable, refuse before taking custody
	if err := uc.settlement.EnsureConfigured(); err != nil {
		return nil, fmt.Errorf("list asset %s: %w", key, err)
	}

	existing, err := uc.listings.GetByKey(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrListingNotFound) {
		return nil, fmt.Errorf("list asset %s: %w", key, err)
	}
	if existing != nil && existing.Status == domain.StatusActive {
		log.Warn("Listing rejected: asset already listed",
			zap.String("key", key.String()),
			zap.String("seller", cmd.Seller.String()),
		)
		return nil, fmt.Errorf("list asset %s: %w", key, domain.ErrAssetAlreadyListed)
	}

	listing, err := domain.NewListing(uuid.New(), key, cmd.Seller, cmd.ReferencePrice, cmd.Deadline, cmd.Mode, uc.now())
	if err != nil {
		return nil, fmt.Errorf("list asset %s: %w", key, err)
	}

	if err := uc.custody.Take(ctx, key, cmd.Seller); err != nil {
		return nil, err
	}

	err = db.RunInTx(ctx, uc.pool, func(tx pgx.Tx) error {
		return uc.listings.Save(ctx, tx, listing)
	})
	if err != nil {
		// hand the asset back, the listing was never recorded
		if releaseErr := uc.custody.Release(ctx, key, cmd.Seller); releaseErr != nil {
			log.Error("Failed to return custody after listing save error",
				zap.String("key", key.String()),
				zap.Error(releaseErr),
			)
		}
		return nil, fmt.Errorf("list asset %s: %w", key, err)
	}

	uc.events.Publish(domain.AssetListed{
		Seller:         cmd.Seller,
		CollectionID:   cmd.CollectionID,
		AssetID:        cmd.AssetID,
		ReferencePrice: listing.ReferencePrice.String(),
		Deadline:       listing.Deadline,
		Mode:           listing.Mode,
	})

	log.Info("Asset listed",
		zap.String("key", key.String()),
		zap.String("listingID", listing.ID.String()),
		zap.String("seller", cmd.Seller.String()),
		zap.String("referencePrice", listing.ReferencePrice.String()),
		zap.String("mode", string(listing.Mode)),
	)
	return listing, nil
}
