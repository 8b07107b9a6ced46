package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestListing(t *testing.T, mode ListingMode) *Listing {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	listing, err := NewListing(
		uuid.New(),
		ListingKey{CollectionID: uuid.New(), AssetID: 7},
		uuid.New(),
		big.NewInt(100_00000000), // 100 reference units
		now.Add(24*time.Hour),
		mode,
		now,
	)
	require.NoError(t, err)
	return listing
}

func TestNewListing_RejectsPastDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := ListingKey{CollectionID: uuid.New(), AssetID: 1}

	_, err := NewListing(uuid.New(), key, uuid.New(), big.NewInt(1), now.Add(-time.Second), ModeFixedSale, now)
	require.ErrorIs(t, err, ErrDeadlineNotInFuture)

	// deadline exactly now is not "in the future" either
	_, err = NewListing(uuid.New(), key, uuid.New(), big.NewInt(1), now, ModeFixedSale, now)
	require.ErrorIs(t, err, ErrDeadlineNotInFuture)
}

func TestNewListing_RejectsNonPositivePrice(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := ListingKey{CollectionID: uuid.New(), AssetID: 1}

	_, err := NewListing(uuid.New(), key, uuid.New(), big.NewInt(0), now.Add(time.Hour), ModeFixedSale, now)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewListing(uuid.New(), key, uuid.New(), nil, now.Add(time.Hour), ModeFixedSale, now)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestEnsureBuyable_DeadlineBoundary(t *testing.T) {
	listing := newTestListing(t, ModeFixedSale)

	// the boundary instant itself still permits a buy
	require.NoError(t, listing.EnsureBuyable(listing.Deadline))

	// one nanosecond past is rejected with the deadline-specific error
	require.ErrorIs(t, listing.EnsureBuyable(listing.Deadline.Add(time.Nanosecond)), ErrSaleDeadlinePassed)
}

func TestEnsureBuyable_WrongModeAndStatus(t *testing.T) {
	auction := newTestListing(t, ModeAuction)
	require.ErrorIs(t, auction.EnsureBuyable(auction.CreatedAt), ErrNotAFixedSale)

	sale := newTestListing(t, ModeFixedSale)
	require.NoError(t, sale.MarkSold(sale.CreatedAt))
	require.ErrorIs(t, sale.EnsureBuyable(sale.CreatedAt), ErrListingNotActive)
}

func TestUnlist_SellerOnlyAndOnce(t *testing.T) {
	listing := newTestListing(t, ModeFixedSale)
	now := listing.CreatedAt.Add(time.Minute)

	require.ErrorIs(t, listing.Unlist(uuid.New(), now), ErrNotSeller)

	require.NoError(t, listing.Unlist(listing.Seller, now))
	require.Equal(t, StatusCancelled, listing.Status)

	// idempotence: the second unlist is a precondition failure
	require.ErrorIs(t, listing.Unlist(listing.Seller, now), ErrListingNotActive)
}

func TestPlaceBid_RejectsFixedSale(t *testing.T) {
	listing := newTestListing(t, ModeFixedSale)

	_, err := listing.PlaceBid(uuid.New(), "tok", big.NewInt(10), listing.CreatedAt)
	require.ErrorIs(t, err, ErrNotAnAuction)
	require.Empty(t, listing.Bids)
}

func TestPlaceBid_IndicesAreADenseLog(t *testing.T) {
	listing := newTestListing(t, ModeAuction)
	now := listing.CreatedAt
	bidderA, bidderB := uuid.New(), uuid.New()

	first, err := listing.PlaceBid(bidderA, "tok", big.NewInt(10), now)
	require.NoError(t, err)
	require.Equal(t, uint64(0), first.Index)

	second, err := listing.PlaceBid(bidderB, "tok", big.NewInt(20), now)
	require.NoError(t, err)
	require.Equal(t, uint64(1), second.Index)

	// cancellation keeps the slot, the next index is not reused
	_, err = listing.CancelBid(first.Index, bidderA, now)
	require.NoError(t, err)

	third, err := listing.PlaceBid(bidderA, "tok", big.NewInt(30), now)
	require.NoError(t, err)
	require.Equal(t, uint64(2), third.Index)
	require.Len(t, listing.Bids, 3)
}

func TestCancelBid_OwnershipAndLifecycle(t *testing.T) {
	listing := newTestListing(t, ModeAuction)
	now := listing.CreatedAt
	bidder := uuid.New()

	bid, err := listing.PlaceBid(bidder, "tok", big.NewInt(10), now)
	require.NoError(t, err)

	_, err = listing.CancelBid(bid.Index, uuid.New(), now)
	require.ErrorIs(t, err, ErrNotYourBid)

	_, err = listing.CancelBid(99, bidder, now)
	require.ErrorIs(t, err, ErrBidNotFound)

	_, err = listing.CancelBid(bid.Index, bidder, now)
	require.NoError(t, err)
	require.Equal(t, BidStatusCancelled, bid.Status)

	_, err = listing.CancelBid(bid.Index, bidder, now)
	require.ErrorIs(t, err, ErrBidNotOpen)
}

func TestAcceptBid_FinalizesAuction(t *testing.T) {
	listing := newTestListing(t, ModeAuction)
	now := listing.CreatedAt
	bidderA, bidderB := uuid.New(), uuid.New()

	first, err := listing.PlaceBid(bidderA, "tok", big.NewInt(10), now)
	require.NoError(t, err)
	second, err := listing.PlaceBid(bidderB, "tok", big.NewInt(20), now)
	require.NoError(t, err)

	_, err = listing.AcceptBid(second.Index, uuid.New(), now)
	require.ErrorIs(t, err, ErrNotSeller)

	accepted, err := listing.AcceptBid(second.Index, listing.Seller, now)
	require.NoError(t, err)
	require.Equal(t, BidStatusAccepted, accepted.Status)
	require.Equal(t, StatusSold, listing.Status)

	// other bids are untouched and still individually cancellable
	require.Equal(t, BidStatusOpen, first.Status)
	_, err = listing.CancelBid(first.Index, bidderA, now)
	require.NoError(t, err)

	// the accepted bid cannot subsequently be cancelled
	_, err = listing.CancelBid(second.Index, bidderB, now)
	require.ErrorIs(t, err, ErrBidNotOpen)

	// and the auction cannot be finalized twice
	_, err = listing.AcceptBid(first.Index, listing.Seller, now)
	require.ErrorIs(t, err, ErrListingNotActive)
}
