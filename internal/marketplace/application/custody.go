package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Custodian owns the escrow invariant: the operator account holds the asset
// if and only if an active listing exists for it. Take and Release are the
// only places the engine touches the asset registry.
type Custodian struct {
	assets   domain.AssetRegistry
	operator uuid.UUID
}

func NewCustodian(assets domain.AssetRegistry, operator uuid.UUID) *Custodian {
	return &Custodian{assets: assets, operator: operator}
}

// Take transfers exclusive control of the asset from the seller into escrow.
func (c *Custodian) Take(ctx context.Context, key domain.ListingKey, from uuid.UUID) error {
	if err := c.assets.TransferFrom(ctx, c.operator, from, c.operator, key); err != nil {
		log.Warn("Custody take failed",
			zap.String("key", key.String()),
			zap.String("from", from.String()),
			zap.Error(err),
		)
		return fmt.Errorf("take custody of %s: %w", key, err)
	}
	return nil
}

// Release transfers control from escrow to the buyer or back to the seller.
// Fails with ErrNotInCustody when the operator does not hold the asset.
func (c *Custodian) Release(ctx context.Context, key domain.ListingKey, to uuid.UUID) error {
	owner, err := c.assets.OwnerOf(ctx, key)
	if err != nil {
		return fmt.Errorf("release custody of %s: %w", key, err)
	}
	if owner != c.operator {
		log.Error("Custody release refused: operator is not the holder",
			zap.String("key", key.String()),
			zap.String("owner", owner.String()),
		)
		return fmt.Errorf("release custody of %s: %w", key, domain.ErrNotInCustody)
	}
	if err := c.assets.TransferFrom(ctx, c.operator, c.operator, to, key); err != nil {
		return fmt.Errorf("release custody of %s: %w", key, err)
	}
	return nil
}

// Holds reports whether the operator currently has custody of the asset.
func (c *Custodian) Holds(ctx context.Context, key domain.ListingKey) (bool, error) {
	owner, err := c.assets.OwnerOf(ctx, key)
	if err != nil {
		return false, err
	}
	return owner == c.operator, nil
}
