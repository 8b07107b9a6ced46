package application

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/pricing"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/db"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/keymutex"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// BuyAssetDTO is the input for buying a fixed-price listing. Payment carries
// the pushed value for the native medium and is ignored for fungible mediums,
// where exactly the converted amount is pulled from the buyer's allowance.
type BuyAssetDTO struct {
	Buyer        uuid.UUID
	Medium       domain.Medium
	CollectionID uuid.UUID
	AssetID      uint64
	Payment      *big.Int
}

// BuyAssetUseCase settles a fixed-price sale: price conversion, fund pull,
// fee split, custody hand-over.
type BuyAssetUseCase struct {
	listings   domain.ListingRepository
	custody    *Custodian
	settlement *Settlement
	converter  *pricing.Converter
	ledger     domain.Ledger
	operator   uuid.UUID
	locks      *keymutex.KeyMutex
	pool       *pgxpool.Pool
	events     domain.EventPublisher
	now        func() time.Time
}

func NewBuyAssetUseCase(listings domain.ListingRepository, custody *Custodian, settlement *Settlement,
	converter *pricing.Converter, ledger domain.Ledger, operator uuid.UUID,
	locks *keymutex.KeyMutex, pool *pgxpool.Pool, events domain.EventPublisher) *BuyAssetUseCase {
	return &BuyAssetUseCase{
		listings:   listings,
		custody:    custody,
		settlement: settlement,
		converter:  converter,
		ledger:     ledger,
		operator:   operator,
		locks:      locks,
		pool:       pool,
		events:     events,
		now:        time.Now,
	}
}

func (uc *BuyAssetUseCase) Execute(ctx context.Context, cmd BuyAssetDTO) error {
	key := domain.ListingKey{CollectionID: cmd.CollectionID, AssetID: cmd.AssetID}
	uc.locks.Lock(key.String())
	defer uc.locks.Unlock(key.String())

	listing, err := uc.listings.GetByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("buy asset %s: %w", key, err)
	}
	if err := listing.EnsureBuyable(uc.now()); err != nil {
		return fmt.Errorf("buy asset %s: %w", key, err)
	}
	if err := uc.settlement.EnsureConfigured(); err != nil {
		return fmt.Errorf("buy asset %s: %w", key, err)
	}

	amount, err := uc.converter.Convert(ctx, listing.ReferencePrice, cmd.Medium)
	if err != nil {
		return fmt.Errorf("buy asset %s: %w", key, err)
	}

	// move the buyer's funds into escrow before touching listing state
	pulled := amount
	if cmd.Medium.IsNative() {
		pulled = cmd.Payment
		if pulled == nil {
			pulled = big.NewInt(0)
		}
		if pulled.Cmp(amount) < 0 {
			log.Warn("Buy rejected: native payment below required amount",
				zap.String("key", key.String()),
				zap.String("payment", pulled.String()),
				zap.String("amount", amount.String()),
			)
			return fmt.Errorf("buy asset %s: %w", key, domain.ErrInsufficientPayment)
		}
	}
	if err := lockFunds(ctx, uc.ledger, cmd.Medium, uc.operator, cmd.Buyer, pulled); err != nil {
		return fmt.Errorf("buy asset %s: %w", key, err)
	}

	// over-payment goes straight back so the buyer's net outflow is exactly
	// the converted amount
	if excess := new(big.Int).Sub(pulled, amount); excess.Sign() > 0 {
		if err := releaseFunds(ctx, uc.ledger, cmd.Medium, uc.operator, cmd.Buyer, excess); err != nil {
			return fmt.Errorf("buy asset %s: refund over-payment: %w", key, err)
		}
	}

	if err := listing.MarkSold(uc.now()); err != nil {
		// give the funds back, nothing was sold
		if refundErr := releaseFunds(ctx, uc.ledger, cmd.Medium, uc.operator, cmd.Buyer, amount); refundErr != nil {
			log.Error("Failed to refund buyer after rejected sale",
				zap.String("key", key.String()),
				zap.Error(refundErr),
			)
		}
		return fmt.Errorf("buy asset %s: %w", key, err)
	}

	err = db.RunInTx(ctx, uc.pool, func(tx pgx.Tx) error {
		return uc.listings.Save(ctx, tx, listing)
	})
	if err != nil {
		if refundErr := releaseFunds(ctx, uc.ledger, cmd.Medium, uc.operator, cmd.Buyer, amount); refundErr != nil {
			log.Error("Failed to refund buyer after save error",
				zap.String("key", key.String()),
				zap.Error(refundErr),
			)
		}
		return fmt.Errorf("buy asset %s: %w", key, err)
	}

	// listing state is final, distribute funds and hand the asset over
	if err := uc.settlement.Settle(ctx, cmd.Medium, amount, listing.Seller); err != nil {
		return fmt.Errorf("buy asset %s: %w", key, err)
	}
	if err := uc.custody.Release(ctx, key, cmd.Buyer); err != nil {
		return fmt.Errorf("buy asset %s: %w", key, err)
	}

	uc.events.Publish(domain.AssetBought{
		Buyer:        cmd.Buyer,
		Seller:       listing.Seller,
		CollectionID: cmd.CollectionID,
		AssetID:      cmd.AssetID,
		Medium:       cmd.Medium,
		Amount:       amount.String(),
	})

	log.Info("Asset bought",
		zap.String("key", key.String()),
		zap.String("buyer", cmd.Buyer.String()),
		zap.String("medium", cmd.Medium.String()),
		zap.String("amount", amount.String()),
	)
	return nil
}
