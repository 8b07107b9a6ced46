package memory

import (
	"context"
	"sync"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListingRepository is an in-memory store of Listing aggregates. Aggregates
// are shared by pointer (there is no reconstruction step), so Save mostly
// validates the one-active-listing-per-asset invariant on first insert. The
// tx argument is ignored.
type ListingRepository struct {
	mu    sync.RWMutex
	byKey map[domain.ListingKey][]*domain.Listing
	byID  map[uuid.UUID]*domain.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		byKey: make(map[domain.ListingKey][]*domain.Listing),
		byID:  make(map[uuid.UUID]*domain.Listing),
	}
}

func (r *ListingRepository) GetByKey(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := r.byKey[key]
	if len(history) == 0 {
		return nil, domain.ErrListingNotFound
	}
	return history[len(history)-1], nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return listing, nil
}

func (r *ListingRepository) Save(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.byID[listing.ID]; known {
		// already stored, the aggregate is shared so there is nothing to copy
		return nil
	}

	history := r.byKey[listing.Key]
	if len(history) > 0 && history[len(history)-1].Status == domain.StatusActive {
		return domain.ErrAssetAlreadyListed
	}

	r.byKey[listing.Key] = append(history, listing)
	r.byID[listing.ID] = listing
	return nil
}

// BidRepository is the in-memory counterpart of the postgres bid store. Bids
// live inside the shared Listing aggregates, so Save only checks the listing
// exists.
type BidRepository struct {
	listings *ListingRepository
}

func NewBidRepository(listings *ListingRepository) *BidRepository {
	return &BidRepository{listings: listings}
}

func (r *BidRepository) Save(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, bid *domain.Bid) error {
	_, err := r.listings.GetByID(ctx, listingID)
	return err
}

func (r *BidRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error) {
	listing, err := r.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return listing.Bids, nil
}
