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

// UnlistAssetDTO is the input for cancelling a listing.
type UnlistAssetDTO struct {
	Caller       uuid.UUID
	CollectionID uuid.UUID
	AssetID      uint64
}

// UnlistAssetUseCase cancels an active listing and returns custody to the
// seller. This is the only path that returns an unsold asset, deadline expiry
// never releases custody on its own.
type UnlistAssetUseCase struct {
	listings domain.ListingRepository
	custody  *Custodian
	locks    *keymutex.KeyMutex
	pool     *pgxpool.Pool
	events   domain.EventPublisher
	now      func() time.Time
}

func NewUnlistAssetUseCase(listings domain.ListingRepository, custody *Custodian,
	locks *keymutex.KeyMutex, pool *pgxpool.Pool, events domain.EventPublisher) *UnlistAssetUseCase {
	return &UnlistAssetUseCase{
		listings: listings,
		custody:  custody,
		locks:    locks,
		pool:     pool,
		events:   events,
		now:      time.Now,
	}
}

func (uc *UnlistAssetUseCase) Execute(ctx context.Context, cmd UnlistAssetDTO) error {
	key := domain.ListingKey{CollectionID: cmd.CollectionID, AssetID: cmd.AssetID}
	uc.locks.Lock(key.String())
	defer uc.locks.Unlock(key.String())

	listing, err := uc.listings.GetByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("unlist asset %s: %w", key, err)
	}
	if err := listing.Unlist(cmd.Caller, uc.now()); err != nil {
		return fmt.Errorf("unlist asset %s: %w", key, err)
	}

	err = db.RunInTx(ctx, uc.pool, func(tx pgx.Tx) error {
		return uc.listings.Save(ctx, tx, listing)
	})
	if err != nil {
		return fmt.Errorf("unlist asset %s: %w", key, err)
	}

	if err := uc.custody.Release(ctx, key, listing.Seller); err != nil {
		return fmt.Errorf("unlist asset %s: %w", key, err)
	}

	uc.events.Publish(domain.AssetUnlisted{
		Seller:       listing.Seller,
		CollectionID: cmd.CollectionID,
		AssetID:      cmd.AssetID,
	})

	log.Info("Asset unlisted",
		zap.String("key", key.String()),
		zap.String("seller", listing.Seller.String()),
	)
	return nil
}
