package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// ListingKey identifies the listed asset: one NFT inside one collection.
type ListingKey struct {
	CollectionID uuid.UUID
	AssetID      uint64
}

func (k ListingKey) String() string {
	return fmt.Sprintf("%s/%d", k.CollectionID, k.AssetID)
}

// ListingMode distinguishes a direct fixed-price sale from an English auction
type ListingMode string

const (
	ModeFixedSale ListingMode = "fixed_sale"
	ModeAuction   ListingMode = "auction"
)

// ListingStatus represents the actual state of a listing
type ListingStatus string

const (
	StatusActive    ListingStatus = "active"
	StatusSold      ListingStatus = "sold"
	StatusCancelled ListingStatus = "cancelled"
)

// Listing is the aggregate root for one escrowed asset sale. ReferencePrice
// is denominated in the reference unit (8 implied decimals). While the
// listing is active the marketplace operator holds custody of the asset.
//
// The bid log belongs to the aggregate but outlives its status: after the
// listing is sold, losing open bids stay individually cancellable so bidders
// can recover their locked funds.
type Listing struct {
	ID             uuid.UUID
	Key            ListingKey
	Seller         uuid.UUID
	ReferencePrice *big.Int
	Deadline       time.Time
	Mode           ListingMode
	Status         ListingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Bids           []*Bid
}

// NewListing creates an active Listing, validating price and deadline.
func NewListing(id uuid.UUID, key ListingKey, seller uuid.UUID, referencePrice *big.Int, deadline time.Time, mode ListingMode, now time.Time) (*Listing, error) {
	if referencePrice == nil || referencePrice.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !deadline.After(now) {
		log.Warn("Listing rejected: deadline not in the future",
			zap.String("key", key.String()),
			zap.Time("deadline", deadline),
		)
		return nil, ErrDeadlineNotInFuture
	}
	return &Listing{
		ID:             id,
		Key:            key,
		Seller:         seller,
		ReferencePrice: new(big.Int).Set(referencePrice),
		Deadline:       deadline,
		Mode:           mode,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		Bids:           []*Bid{},
	}, nil
}

// EnsureBuyable checks every buy precondition without mutating state: the
// listing must be an active fixed-price sale and the deadline must not have
// passed. A buy exactly at the deadline instant is still permitted, only
// strictly-after is rejected.
func (l *Listing) EnsureBuyable(now time.Time) error {
	if l.Status != StatusActive {
		return ErrListingNotActive
	}
	if l.Mode != ModeFixedSale {
		return ErrNotAFixedSale
	}
	if now.After(l.Deadline) {
		log.Warn("Buy rejected: sale deadline passed",
			zap.String("key", l.Key.String()),
			zap.Time("deadline", l.Deadline),
			zap.Time("now", now),
		)
		return ErrSaleDeadlinePassed
	}
	return nil
}

// MarkSold transitions an active listing to sold.
func (l *Listing) MarkSold(now time.Time) error {
	if l.Status != StatusActive {
		return ErrListingNotActive
	}
	l.Status = StatusSold
	l.UpdatedAt = now
	log.Info("Listing sold",
		zap.String("key", l.Key.String()),
		zap.String("listingID", l.ID.String()),
	)
	return nil
}

// Unlist cancels an active listing. Only the seller may unlist; a second
// unlist fails because the listing is no longer active.
func (l *Listing) Unlist(caller uuid.UUID, now time.Time) error {
	if caller != l.Seller {
		log.Warn("Unlist rejected: caller is not the seller",
			zap.String("key", l.Key.String()),
			zap.String("caller", caller.String()),
		)
		return ErrNotSeller
	}
	if l.Status != StatusActive {
		return ErrListingNotActive
	}
	l.Status = StatusCancelled
	l.UpdatedAt = now
	log.Info("Listing cancelled",
		zap.String("key", l.Key.String()),
		zap.String("listingID", l.ID.String()),
	)
	return nil
}

// EnsureBiddable checks bid placement preconditions without mutating state.
// Bidding against a fixed-price listing is the mode-specific rejection path.
func (l *Listing) EnsureBiddable() error {
	if l.Status != StatusActive {
		return ErrListingNotActive
	}
	if l.Mode != ModeAuction {
		log.Warn("Bid rejected: listing is not an auction",
			zap.String("key", l.Key.String()),
			zap.String("mode", string(l.Mode)),
		)
		return ErrNotAnAuction
	}
	return nil
}

// PlaceBid appends a new open bid with the next dense index. The caller has
// already locked the funds in escrow.
func (l *Listing) PlaceBid(bidder uuid.UUID, medium Medium, amount *big.Int, now time.Time) (*Bid, error) {
	if err := l.EnsureBiddable(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	bid := NewBid(uint64(len(l.Bids)), bidder, medium, amount, now)
	l.Bids = append(l.Bids, bid)
	l.UpdatedAt = now

	log.Info("Bid placed",
		zap.String("key", l.Key.String()),
		zap.Uint64("bidIndex", bid.Index),
		zap.String("bidder", bidder.String()),
		zap.String("medium", medium.String()),
		zap.String("amount", amount.String()),
	)
	return bid, nil
}

// BidAt returns the bid with the given index.
func (l *Listing) BidAt(index uint64) (*Bid, error) {
	if index >= uint64(len(l.Bids)) {
		return nil, ErrBidNotFound
	}
	return l.Bids[index], nil
}

// CancelBid marks an open bid cancelled so its locked funds can be refunded.
// Only the original bidder may cancel, and cancellation stays available after
// the listing is sold: losing bids are refunded bidder-initiated, never
// automatically by acceptance.
func (l *Listing) CancelBid(index uint64, caller uuid.UUID, now time.Time) (*Bid, error) {
	bid, err := l.BidAt(index)
	if err != nil {
		return nil, err
	}
	if bid.Bidder != caller {
		log.Warn("Bid cancel rejected: caller is not the bidder",
			zap.String("key", l.Key.String()),
			zap.Uint64("bidIndex", index),
			zap.String("caller", caller.String()),
		)
		return nil, ErrNotYourBid
	}
	if bid.Status != BidStatusOpen {
		return nil, ErrBidNotOpen
	}
	bid.Status = BidStatusCancelled
	l.UpdatedAt = now

	log.Info("Bid cancelled",
		zap.String("key", l.Key.String()),
		zap.Uint64("bidIndex", index),
		zap.String("bidder", bid.Bidder.String()),
	)
	return bid, nil
}

// AcceptBid finalizes the auction: the seller selects exactly one open bid,
// the listing transitions to sold and the bid to accepted. All other bids are
// left untouched in whatever state they were.
func (l *Listing) AcceptBid(index uint64, caller uuid.UUID, now time.Time) (*Bid, error) {
	if caller != l.Seller {
		log.Warn("Bid accept rejected: caller is not the seller",
			zap.String("key", l.Key.String()),
			zap.Uint64("bidIndex", index),
			zap.String("caller", caller.String()),
		)
		return nil, ErrNotSeller
	}
	if l.Status != StatusActive {
		return nil, ErrListingNotActive
	}
	if l.Mode != ModeAuction {
		return nil, ErrNotAnAuction
	}
	bid, err := l.BidAt(index)
	if err != nil {
		return nil, err
	}
	if bid.Status != BidStatusOpen {
		return nil, ErrBidNotOpen
	}

	bid.Status = BidStatusAccepted
	l.Status = StatusSold
	l.UpdatedAt = now

	log.Info("Bid accepted",
		zap.String("key", l.Key.String()),
		zap.Uint64("bidIndex", index),
		zap.String("bidder", bid.Bidder.String()),
		zap.String("amount", bid.Amount.String()),
	)
	return bid, nil
}
