package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidDTO exposes one bid from the listing's bid log.
type BidDTO struct {
	Index    uint64    `json:"index"`
	Bidder   uuid.UUID `json:"bidder"`
	Medium   string    `json:"medium"`
	Amount   string    `json:"amount"`
	Status   string    `json:"status"`
	PlacedAt time.Time `json:"placed_at"`
}

// ListingStateDTO is the output DTO for exposing listing state over HTTP/WS.
// ReferencePrice is the raw 8-decimal integer, ReferencePriceUSD the same
// value rendered as a decimal string for humans.
type ListingStateDTO struct {
	ListingID         uuid.UUID `json:"listing_id"`
	CollectionID      uuid.UUID `json:"collection_id"`
	AssetID           uint64    `json:"asset_id"`
	Seller            uuid.UUID `json:"seller"`
	ReferencePrice    string    `json:"reference_price"`
	ReferencePriceUSD string    `json:"reference_price_usd"`
	Deadline          time.Time `json:"deadline"`
	Mode              string    `json:"mode"`
	Status            string    `json:"status"`
	Bids              []BidDTO  `json:"bids"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetListingStateUseCase retrieves the most recent listing for an asset,
// whatever its status, with its full bid log.
type GetListingStateUseCase struct {
	listings domain.ListingRepository
}

func NewGetListingStateUseCase(listings domain.ListingRepository) *GetListingStateUseCase {
	return &GetListingStateUseCase{listings: listings}
}

func (uc *GetListingStateUseCase) Execute(ctx context.Context, collectionID uuid.UUID, assetID uint64) (*ListingStateDTO, error) {
	key := domain.ListingKey{CollectionID: collectionID, AssetID: assetID}
	listing, err := uc.listings.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get listing state %s: %w", key, err)
	}

	dto := &ListingStateDTO{
		ListingID:         listing.ID,
		CollectionID:      listing.Key.CollectionID,
		AssetID:           listing.Key.AssetID,
		Seller:            listing.Seller,
		ReferencePrice:    listing.ReferencePrice.String(),
		ReferencePriceUSD: decimal.NewFromBigInt(listing.ReferencePrice, -8).String(),
		Deadline:          listing.Deadline,
		Mode:              string(listing.Mode),
		Status:            string(listing.Status),
		Bids:              make([]BidDTO, 0, len(listing.Bids)),
		CreatedAt:         listing.CreatedAt,
		UpdatedAt:         listing.UpdatedAt,
	}
	for _, bid := range listing.Bids {
		dto.Bids = append(dto.Bids, BidDTO{
			Index:    bid.Index,
			Bidder:   bid.Bidder,
			Medium:   bid.Medium.String(),
			Amount:   bid.Amount.String(),
			Status:   string(bid.Status),
			PlacedAt: bid.PlacedAt,
		})
	}
	return dto, nil
}
