package memory

import (
	"context"
	"sync"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
)

// AssetRegistry is an in-memory NFT collection collaborator with per-asset
// approvals, the stand-in for the external asset-ownership registry.
type AssetRegistry struct {
	mu        sync.RWMutex
	owners    map[domain.ListingKey]uuid.UUID
	approvals map[domain.ListingKey]uuid.UUID
}

func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{
		owners:    make(map[domain.ListingKey]uuid.UUID),
		approvals: make(map[domain.ListingKey]uuid.UUID),
	}
}

// Mint assigns a fresh asset to owner. Test/bootstrap helper, not part of the
// collaborator interface.
func (r *AssetRegistry) Mint(key domain.ListingKey, owner uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[key] = owner
}

// Approve grants operator transfer rights over one asset, owner-controlled.
func (r *AssetRegistry) Approve(key domain.ListingKey, owner, operator uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[key] != owner {
		return domain.ErrNotOwnerOrNotApproved
	}
	r.approvals[key] = operator
	return nil
}

func (r *AssetRegistry) OwnerOf(ctx context.Context, key domain.ListingKey) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[key]
	if !ok {
		return uuid.Nil, domain.ErrListingNotFound
	}
	return owner, nil
}

func (r *AssetRegistry) TransferFrom(ctx context.Context, operator, from, to uuid.UUID, key domain.ListingKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[key]
	if !ok || owner != from {
		return domain.ErrNotOwnerOrNotApproved
	}
	if operator != owner && r.approvals[key] != operator {
		return domain.ErrNotOwnerOrNotApproved
	}

	r.owners[key] = to
	// approvals do not survive a transfer
	delete(r.approvals, key)
	return nil
}
