package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListingRepository implements domain.ListingRepository interface
type ListingRepository struct {
	pool *pgxpool.Pool
	bids *BidRepository
}

// NewListingRepository creates a new instance of ListingRepository
func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool, bids: NewBidRepository(pool)}
}

// Save upserts the listing and its bid log inside the caller's transaction.
// The partial unique index on active listings turns a double-list race into
// domain.ErrAssetAlreadyListed.
func (r *ListingRepository) Save(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error {
	query := `
        INSERT INTO listings (id, collection_id, asset_id, seller, reference_price, deadline, mode, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE
        SET
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at;
    `
	_, err := tx.Exec(ctx, query,
		listing.ID,
		listing.Key.CollectionID,
		int64(listing.Key.AssetID),
		listing.Seller,
		listing.ReferencePrice.String(),
		listing.Deadline,
		string(listing.Mode),
		string(listing.Status),
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAssetAlreadyListed
		}
		return err
	}

	for _, bid := range listing.Bids {
		if err := r.bids.Save(ctx, tx, listing.ID, bid); err != nil {
			return err
		}
	}
	return nil
}

// GetByKey retrieves the most recent listing for the asset, any status, with
// its full bid log.
func (r *ListingRepository) GetByKey(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	query := `
        SELECT id, collection_id, asset_id, seller, reference_price, deadline, mode, status, created_at, updated_at
        FROM listings
        WHERE collection_id = $1 AND asset_id = $2
        ORDER BY created_at DESC
        LIMIT 1
    `
	return r.scanListing(ctx, r.pool.QueryRow(ctx, query, key.CollectionID, int64(key.AssetID)))
}

// GetByID retrieves a listing by its row id, with its full bid log.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	query := `
        SELECT id, collection_id, asset_id, seller, reference_price, deadline, mode, status, created_at, updated_at
        FROM listings
        WHERE id = $1
    `
	return r.scanListing(ctx, r.pool.QueryRow(ctx, query, id))
}

func (r *ListingRepository) scanListing(ctx context.Context, row pgx.Row) (*domain.Listing, error) {
	listing := &domain.Listing{}
	var (
		assetID        int64
		referencePrice string
		mode           string
		status         string
	)

	err := row.Scan(
		&listing.ID,
		&listing.Key.CollectionID,
		&assetID,
		&listing.Seller,
		&referencePrice,
		&listing.Deadline,
		&mode,
		&status,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}

	listing.Key.AssetID = uint64(assetID)
	listing.Mode = domain.ListingMode(mode)
	listing.Status = domain.ListingStatus(status)
	price, ok := new(big.Int).SetString(referencePrice, 10)
	if !ok {
		return nil, fmt.Errorf("listing %s: malformed reference price %q", listing.ID, referencePrice)
	}
	listing.ReferencePrice = price

	bids, err := r.bids.GetByListingID(ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	listing.Bids = bids

	return listing, nil
}
