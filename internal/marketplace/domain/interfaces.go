package domain

import (
	"context"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListingRepository persists Listing aggregates with their bid log. Save runs
// inside the caller's transaction; the in-memory implementation ignores tx.
type ListingRepository interface {
	// GetByKey returns the most recent listing for the asset, any status,
	// bids included. ErrListingNotFound if the asset was never listed.
	GetByKey(ctx context.Context, key ListingKey) (*Listing, error)
	// GetByID returns a listing by its row id, bids included.
	GetByID(ctx context.Context, id uuid.UUID) (*Listing, error)
	// Save upserts the listing. Inserting a second active listing for the
	// same key fails with ErrAssetAlreadyListed.
	Save(ctx context.Context, tx pgx.Tx, listing *Listing) error
}

// BidRepository persists individual bids of a listing's bid log.
type BidRepository interface {
	Save(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, bid *Bid) error
	GetByListingID(ctx context.Context, listingID uuid.UUID) ([]*Bid, error)
}

// AssetRegistry is the external NFT collection collaborator. Transfers are
// fallible trust-boundary calls: the owner controls approvals.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, key ListingKey) (uuid.UUID, error)
	// TransferFrom moves the asset from `from` to `to`. Fails with
	// ErrNotOwnerOrNotApproved when operator lacks transfer rights.
	TransferFrom(ctx context.Context, operator, from, to uuid.UUID, key ListingKey) error
}

// Ledger is the external fungible-token / native-currency collaborator, one
// balance book per medium. TransferFrom is the pull-style allowance-checked
// path and is not supported for the native medium; Transfer is the push-style
// path carrying the caller's own authority.
type Ledger interface {
	BalanceOf(ctx context.Context, medium Medium, holder uuid.UUID) (*big.Int, error)
	Transfer(ctx context.Context, medium Medium, from, to uuid.UUID, amount *big.Int) error
	TransferFrom(ctx context.Context, medium Medium, spender, from, to uuid.UUID, amount *big.Int) error
}

// RateOracle reports the reference-unit price of one whole unit of a medium,
// at an arbitrary scale (e.g. value=2_00000000, scale=1e8 means 2 reference
// units per whole token).
type RateOracle interface {
	LatestRate(ctx context.Context) (value *big.Int, scale *big.Int, err error)
}

// EventPublisher fans marketplace events out to external indexers.
type EventPublisher interface {
	Publish(event Event)
}
