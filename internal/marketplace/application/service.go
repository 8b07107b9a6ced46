package application

import (
	"context"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
)

// MarketplaceService defines application interface layer of the marketplace
// module, exposes every listing/bid lifecycle operation to the infra layer.
type MarketplaceService interface {
	ListAsset(ctx context.Context, cmd ListAssetDTO) (*domain.Listing, error)
	BuyAsset(ctx context.Context, cmd BuyAssetDTO) error
	UnlistAsset(ctx context.Context, cmd UnlistAssetDTO) error
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error)
	CancelBid(ctx context.Context, cmd CancelBidDTO) error
	AcceptBid(ctx context.Context, cmd AcceptBidDTO) error
	GetListingState(ctx context.Context, collectionID uuid.UUID, assetID uint64) (*ListingStateDTO, error)
}

// concrete implementation of MarketplaceService
type marketplaceService struct {
	listAssetUC       *ListAssetUseCase
	buyAssetUC        *BuyAssetUseCase
	unlistAssetUC     *UnlistAssetUseCase
	placeBidUC        *PlaceBidUseCase
	cancelBidUC       *CancelBidUseCase
	acceptBidUC       *AcceptBidUseCase
	getListingStateUC *GetListingStateUseCase
}

func NewMarketplaceService(
	listAssetUC *ListAssetUseCase,
	buyAssetUC *BuyAssetUseCase,
	unlistAssetUC *UnlistAssetUseCase,
	placeBidUC *PlaceBidUseCase,
	cancelBidUC *CancelBidUseCase,
	acceptBidUC *AcceptBidUseCase,
	getListingStateUC *GetListingStateUseCase,
) MarketplaceService {
	return &marketplaceService{
		listAssetUC:       listAssetUC,
		buyAssetUC:        buyAssetUC,
		unlistAssetUC:     unlistAssetUC,
		placeBidUC:        placeBidUC,
		cancelBidUC:       cancelBidUC,
		acceptBidUC:       acceptBidUC,
		getListingStateUC: getListingStateUC,
	}
}

func (ms *marketplaceService) ListAsset(ctx context.Context, cmd ListAssetDTO) (*domain.Listing, error) {
	return ms.listAssetUC.Execute(ctx, cmd)
}

func (ms *marketplaceService) BuyAsset(ctx context.Context, cmd BuyAssetDTO) error {
	return ms.buyAssetUC.Execute(ctx, cmd)
}

func (ms *marketplaceService) UnlistAsset(ctx context.Context, cmd UnlistAssetDTO) error {
	return ms.unlistAssetUC.Execute(ctx, cmd)
}

func (ms *marketplaceService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	return ms.placeBidUC.Execute(ctx, cmd)
}

func (ms *marketplaceService) CancelBid(ctx context.Context, cmd CancelBidDTO) error {
	return ms.cancelBidUC.Execute(ctx, cmd)
}

func (ms *marketplaceService) AcceptBid(ctx context.Context, cmd AcceptBidDTO) error {
	return ms.acceptBidUC.Execute(ctx, cmd)
}

func (ms *marketplaceService) GetListingState(ctx context.Context, collectionID uuid.UUID, assetID uint64) (*ListingStateDTO, error) {
	return ms.getListingStateUC.Execute(ctx, collectionID, assetID)
}
