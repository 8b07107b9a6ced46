package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a marketplace event on the wire.
type EventType string

const (
	EventAssetListed   EventType = "asset_listed"
	EventAssetBought   EventType = "asset_bought"
	EventAssetUnlisted EventType = "asset_unlisted"
	EventBidPlaced     EventType = "bid_placed"
	EventBidCancelled  EventType = "bid_cancelled"
	EventBidAccepted   EventType = "bid_accepted"
)

// Event is an observable marketplace state transition. Amounts travel as
// decimal strings so indexers never lose precision to JSON numbers.
type Event interface {
	EventType() EventType
	ListingKey() ListingKey
}

type AssetListed struct {
	Seller         uuid.UUID   `json:"seller"`
	CollectionID   uuid.UUID   `json:"collection_id"`
	AssetID        uint64      `json:"asset_id"`
	ReferencePrice string      `json:"reference_price"`
	Deadline       time.Time   `json:"deadline"`
	Mode           ListingMode `json:"mode"`
}

func (e AssetListed) EventType() EventType { return EventAssetListed }
func (e AssetListed) ListingKey() ListingKey {
	return ListingKey{CollectionID: e.CollectionID, AssetID: e.AssetID}
}

type AssetBought struct {
	Buyer        uuid.UUID `json:"buyer"`
	Seller       uuid.UUID `json:"seller"`
	CollectionID uuid.UUID `json:"collection_id"`
	AssetID      uint64    `json:"asset_id"`
	Medium       Medium    `json:"medium"`
	Amount       string    `json:"amount"`
}

func (e AssetBought) EventType() EventType { return EventAssetBought }
func (e AssetBought) ListingKey() ListingKey {
	return ListingKey{CollectionID: e.CollectionID, AssetID: e.AssetID}
}

type AssetUnlisted struct {
	Seller       uuid.UUID `json:"seller"`
	CollectionID uuid.UUID `json:"collection_id"`
	AssetID      uint64    `json:"asset_id"`
}

func (e AssetUnlisted) EventType() EventType { return EventAssetUnlisted }
func (e AssetUnlisted) ListingKey() ListingKey {
	return ListingKey{CollectionID: e.CollectionID, AssetID: e.AssetID}
}

type BidPlaced struct {
	BidIndex     uint64    `json:"bid_index"`
	Bidder       uuid.UUID `json:"bidder"`
	CollectionID uuid.UUID `json:"collection_id"`
	AssetID      uint64    `json:"asset_id"`
	Medium       Medium    `json:"medium"`
	Amount       string    `json:"amount"`
}

func (e BidPlaced) EventType() EventType { return EventBidPlaced }
func (e BidPlaced) ListingKey() ListingKey {
	return ListingKey{CollectionID: e.CollectionID, AssetID: e.AssetID}
}

type BidCancelled struct {
	BidIndex     uint64    `json:"bid_index"`
	Bidder       uuid.UUID `json:"bidder"`
	CollectionID uuid.UUID `json:"collection_id"`
	AssetID      uint64    `json:"asset_id"`
	Medium       Medium    `json:"medium"`
	Amount       string    `json:"amount"`
}

func (e BidCancelled) EventType() EventType { return EventBidCancelled }
func (e BidCancelled) ListingKey() ListingKey {
	return ListingKey{CollectionID: e.CollectionID, AssetID: e.AssetID}
}

type BidAccepted struct {
	BidIndex     uint64    `json:"bid_index"`
	Bidder       uuid.UUID `json:"bidder"`
	Seller       uuid.UUID `json:"seller"`
	CollectionID uuid.UUID `json:"collection_id"`
	AssetID      uint64    `json:"asset_id"`
	Medium       Medium    `json:"medium"`
	Amount       string    `json:"amount"`
}

func (e BidAccepted) EventType() EventType { return EventBidAccepted }
func (e BidAccepted) ListingKey() ListingKey {
	return ListingKey{CollectionID: e.CollectionID, AssetID: e.AssetID}
}
