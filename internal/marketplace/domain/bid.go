package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// BidStatus represents the lifecycle state of a single auction bid
type BidStatus string

const (
	BidStatusOpen      BidStatus = "open"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusCancelled BidStatus = "cancelled"
)

// Bid represents an individual bid inside a Listing aggregate. Bids form a
// dense log: Index is insertion-ordered and never reused, cancelled bids keep
// their slot. Amount is locked in escrow at placement, in the medium's
// smallest unit.
type Bid struct {
	Index    uint64
	Bidder   uuid.UUID
	Medium   Medium
	Amount   *big.Int
	Status   BidStatus
	PlacedAt time.Time
}

// NewBid creates a new open Bid instance
func NewBid(index uint64, bidder uuid.UUID, medium Medium, amount *big.Int, placedAt time.Time) *Bid {
	return &Bid{
		Index:    index,
		Bidder:   bidder,
		Medium:   medium,
		Amount:   new(big.Int).Set(amount),
		Status:   BidStatusOpen,
		PlacedAt: placedAt,
	}
}
