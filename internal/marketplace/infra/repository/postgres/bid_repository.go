package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository implements domain.BidRepository interface
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates a new instance of BidRepository
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// Save upserts one bid of the listing's log inside the caller's transaction.
func (r *BidRepository) Save(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (listing_id, bid_index, bidder, medium, amount, status, placed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (listing_id, bid_index) DO UPDATE
        SET
            status = EXCLUDED.status,
            updated_at = NOW();
    `
	_, err := tx.Exec(ctx, query,
		listingID,
		int64(bid.Index),
		bid.Bidder,
		bid.Medium.String(),
		bid.Amount.String(),
		string(bid.Status),
		bid.PlacedAt,
	)
	return err
}

// GetByListingID retrieves the dense bid log of a listing in index order.
func (r *BidRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT bid_index, bidder, medium, amount, status, placed_at
        FROM bids
        WHERE listing_id = $1
        ORDER BY bid_index ASC
    `
	rows, err := r.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid := &domain.Bid{}
		var (
			index  int64
			medium string
			amount string
			status string
		)
		if err := rows.Scan(&index, &bid.Bidder, &medium, &amount, &status, &bid.PlacedAt); err != nil {
			return nil, err
		}
		bid.Index = uint64(index)
		bid.Medium = domain.Medium(medium)
		bid.Status = domain.BidStatus(status)
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("bid %d of listing %s: malformed amount %q", index, listingID, amount)
		}
		bid.Amount = value
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bids, nil
}
