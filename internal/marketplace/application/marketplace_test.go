package application

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/infra/memory"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/pricing"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/registry"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/keymutex"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

const (
	tok    = domain.Medium("tok")
	native = domain.MediumNative
	feeBps = uint32(250) // 2.5%
)

// recorder captures published events for assertions.
type recorder struct {
	events []domain.Event
}

func (r *recorder) Publish(event domain.Event) {
	r.events = append(r.events, event)
}

func (r *recorder) last(t *testing.T) domain.Event {
	t.Helper()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

// fixture wires the whole engine against the in-memory collaborators, with a
// controllable clock shared by every use case.
type fixture struct {
	t        *testing.T
	now      time.Time
	operator uuid.UUID
	treasury uuid.UUID
	seller   uuid.UUID
	buyer    uuid.UUID

	assets   *memory.AssetRegistry
	ledger   *memory.Ledger
	listings *memory.ListingRepository
	oracle   *memory.Oracle
	registry *registry.Registry
	events   *recorder

	list   *ListAssetUseCase
	buy    *BuyAssetUseCase
	unlist *UnlistAssetUseCase
	place  *PlaceBidUseCase
	cancel *CancelBidUseCase
	accept *AcceptBidUseCase
	state  *GetListingStateUseCase
}

func newFixture(t *testing.T, feeRateBps uint32, withTreasury bool) *fixture {
	t.Helper()

	fx := &fixture{
		t:        t,
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		operator: uuid.New(),
		seller:   uuid.New(),
		buyer:    uuid.New(),
		assets:   memory.NewAssetRegistry(),
		ledger:   memory.NewLedger(),
		listings: memory.NewListingRepository(),
		events:   &recorder{},
	}
	if withTreasury {
		fx.treasury = uuid.New()
	}

	// tok: 18 decimals at 2 reference units per whole token
	// native: 18 decimals at 4 reference units per whole unit
	fx.oracle = memory.NewOracle(big.NewInt(2_00000000), big.NewInt(1_00000000))
	fx.registry = registry.New(time.Minute)
	fx.registry.SetPaymentMedium(tok, fx.oracle, 18, true)
	fx.registry.SetPaymentMedium(native, memory.NewOracle(big.NewInt(4_00000000), big.NewInt(1_00000000)), 18, true)

	bids := memory.NewBidRepository(fx.listings)
	converter := pricing.NewConverter(fx.registry)
	locks := keymutex.New()
	custody := NewCustodian(fx.assets, fx.operator)
	settlement := NewSettlement(fx.ledger, fx.operator, fx.treasury, feeRateBps)

	clock := func() time.Time { return fx.now }

	fx.list = NewListAssetUseCase(fx.listings, custody, settlement, locks, nil, fx.events)
	fx.list.now = clock
	fx.buy = NewBuyAssetUseCase(fx.listings, custody, settlement, converter, fx.ledger, fx.operator, locks, nil, fx.events)
	fx.buy.now = clock
	fx.unlist = NewUnlistAssetUseCase(fx.listings, custody, locks, nil, fx.events)
	fx.unlist.now = clock
	fx.place = NewPlaceBidUseCase(fx.listings, bids, fx.registry, fx.ledger, fx.operator, locks, nil, fx.events)
	fx.place.now = clock
	fx.cancel = NewCancelBidUseCase(fx.listings, bids, fx.ledger, fx.operator, locks, nil, fx.events)
	fx.cancel.now = clock
	fx.accept = NewAcceptBidUseCase(fx.listings, bids, custody, settlement, locks, nil, fx.events)
	fx.accept.now = clock
	fx.state = NewGetListingStateUseCase(fx.listings)

	return fx
}

func (fx *fixture) mintAsset(owner uuid.UUID) domain.ListingKey {
	fx.t.Helper()
	key := domain.ListingKey{CollectionID: uuid.New(), AssetID: 1}
	fx.assets.Mint(key, owner)
	require.NoError(fx.t, fx.assets.Approve(key, owner, fx.operator))
	return key
}

func (fx *fixture) listAsset(key domain.ListingKey, mode domain.ListingMode, priceUSD8 int64) *domain.Listing {
	fx.t.Helper()
	listing, err := fx.list.Execute(context.Background(), ListAssetDTO{
		Seller:         fx.seller,
		CollectionID:   key.CollectionID,
		AssetID:        key.AssetID,
		ReferencePrice: big.NewInt(priceUSD8),
		Deadline:       fx.now.Add(24 * time.Hour),
		Mode:           mode,
	})
	require.NoError(fx.t, err)
	return listing
}

func (fx *fixture) ownerOf(key domain.ListingKey) uuid.UUID {
	fx.t.Helper()
	owner, err := fx.assets.OwnerOf(context.Background(), key)
	require.NoError(fx.t, err)
	return owner
}

func (fx *fixture) balance(medium domain.Medium, holder uuid.UUID) *big.Int {
	fx.t.Helper()
	b, err := fx.ledger.BalanceOf(context.Background(), medium, holder)
	require.NoError(fx.t, err)
	return b
}

func parseBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "malformed big int literal %q", s)
	return v
}

func TestListAsset_TakesCustody(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)

	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	require.Equal(t, fx.operator, fx.ownerOf(key))
	listed, ok := fx.events.last(t).(domain.AssetListed)
	require.True(t, ok)
	require.Equal(t, fx.seller, listed.Seller)
	require.Equal(t, "10000000000", listed.ReferencePrice)
}

func TestListAsset_RejectsSecondActiveListing(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	_, err := fx.list.Execute(context.Background(), ListAssetDTO{
		Seller:         fx.seller,
		CollectionID:   key.CollectionID,
		AssetID:        key.AssetID,
		ReferencePrice: big.NewInt(1_00000000),
		Deadline:       fx.now.Add(time.Hour),
		Mode:           domain.ModeAuction,
	})
	require.ErrorIs(t, err, domain.ErrAssetAlreadyListed)
}

func TestListAsset_RequiresApproval(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := domain.ListingKey{CollectionID: uuid.New(), AssetID: 2}
	fx.assets.Mint(key, fx.seller) // no approval granted

	_, err := fx.list.Execute(context.Background(), ListAssetDTO{
		Seller:         fx.seller,
		CollectionID:   key.CollectionID,
		AssetID:        key.AssetID,
		ReferencePrice: big.NewInt(1_00000000),
		Deadline:       fx.now.Add(time.Hour),
		Mode:           domain.ModeFixedSale,
	})
	require.ErrorIs(t, err, domain.ErrNotOwnerOrNotApproved)
	require.Equal(t, fx.seller, fx.ownerOf(key))
}

func TestBuyAsset_SettlesWithFeeSplit(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000) // 100 reference units

	// 100 USD at 2 USD/token = 50 tokens
	amount := parseBig(t, "50000000000000000000")
	fx.ledger.Mint(tok, fx.buyer, amount)
	fx.ledger.Approve(tok, fx.buyer, fx.operator, amount)

	err := fx.buy.Execute(context.Background(), BuyAssetDTO{
		Buyer:        fx.buyer,
		Medium:       tok,
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
	})
	require.NoError(t, err)

	// buyer's escrowed allowance fully consumed, asset handed over
	require.Equal(t, big.NewInt(0), fx.balance(tok, fx.buyer))
	require.Equal(t, fx.buyer, fx.ownerOf(key))

	// fee = 50e18 * 250 / 10000, net = gross - fee, nothing lost
	fee := parseBig(t, "1250000000000000000")
	net := parseBig(t, "48750000000000000000")
	require.Equal(t, fee, fx.balance(tok, fx.treasury))
	require.Equal(t, net, fx.balance(tok, fx.seller))
	require.Equal(t, big.NewInt(0), fx.balance(tok, fx.operator))

	state, err := fx.state.Execute(context.Background(), key.CollectionID, key.AssetID)
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusSold), state.Status)
	require.Equal(t, "100", state.ReferencePriceUSD)
}

func TestBuyAsset_DeadlineBoundary(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	listing := fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	amount := parseBig(t, "50000000000000000000")
	fx.ledger.Mint(tok, fx.buyer, amount)
	fx.ledger.Approve(tok, fx.buyer, fx.operator, amount)

	cmd := BuyAssetDTO{Buyer: fx.buyer, Medium: tok, CollectionID: key.CollectionID, AssetID: key.AssetID}

	// one second past the deadline: deadline-specific rejection, untouched state
	fx.now = listing.Deadline.Add(time.Second)
	err := fx.buy.Execute(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrSaleDeadlinePassed)
	require.Equal(t, fx.operator, fx.ownerOf(key))
	require.Equal(t, amount, fx.balance(tok, fx.buyer))

	// the boundary instant itself still permits the buy
	fx.now = listing.Deadline
	require.NoError(t, fx.buy.Execute(context.Background(), cmd))
	require.Equal(t, fx.buyer, fx.ownerOf(key))
}

func TestBuyAsset_InsufficientAllowanceLeavesStateUnchanged(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	amount := parseBig(t, "50000000000000000000")
	fx.ledger.Mint(tok, fx.buyer, amount)
	short := new(big.Int).Sub(amount, big.NewInt(1))
	fx.ledger.Approve(tok, fx.buyer, fx.operator, short)

	err := fx.buy.Execute(context.Background(), BuyAssetDTO{
		Buyer:        fx.buyer,
		Medium:       tok,
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientAllowance)

	// atomic rejection: custody, listing and balances all untouched
	require.Equal(t, fx.operator, fx.ownerOf(key))
	require.Equal(t, amount, fx.balance(tok, fx.buyer))
	state, stateErr := fx.state.Execute(context.Background(), key.CollectionID, key.AssetID)
	require.NoError(t, stateErr)
	require.Equal(t, string(domain.StatusActive), state.Status)
}

func TestBuyAsset_NativeOverpaymentRefunded(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	// 100 USD at 4 USD/native = 25 native units
	amount := parseBig(t, "25000000000000000000")
	funded := parseBig(t, "40000000000000000000")
	fx.ledger.Mint(native, fx.buyer, funded)

	err := fx.buy.Execute(context.Background(), BuyAssetDTO{
		Buyer:        fx.buyer,
		Medium:       native,
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
		Payment:      funded, // pushes everything, excess must come back
	})
	require.NoError(t, err)

	// net outflow is exactly the converted amount
	wantLeft := new(big.Int).Sub(funded, amount)
	require.Equal(t, wantLeft, fx.balance(native, fx.buyer))
	require.Equal(t, fx.buyer, fx.ownerOf(key))
}

func TestBuyAsset_NativeUnderpaymentRejected(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	payment := parseBig(t, "24000000000000000000") // below the 25 required
	fx.ledger.Mint(native, fx.buyer, payment)

	err := fx.buy.Execute(context.Background(), BuyAssetDTO{
		Buyer:        fx.buyer,
		Medium:       native,
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
		Payment:      payment,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientPayment)
	require.Equal(t, payment, fx.balance(native, fx.buyer))
	require.Equal(t, fx.operator, fx.ownerOf(key))
}

func TestUnlist_ReturnsCustodyOnceOnly(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	cmd := UnlistAssetDTO{Caller: fx.seller, CollectionID: key.CollectionID, AssetID: key.AssetID}
	require.NoError(t, fx.unlist.Execute(context.Background(), cmd))
	require.Equal(t, fx.seller, fx.ownerOf(key))

	// second unlist fails with a precondition error, no double release
	err := fx.unlist.Execute(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrListingNotActive)
	require.Equal(t, fx.seller, fx.ownerOf(key))
}

func TestUnlist_AllowedPastDeadline(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	listing := fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	// expiry never releases custody on its own, unlist is the only way back
	fx.now = listing.Deadline.Add(48 * time.Hour)
	require.NoError(t, fx.unlist.Execute(context.Background(), UnlistAssetDTO{
		Caller:       fx.seller,
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
	}))
	require.Equal(t, fx.seller, fx.ownerOf(key))
}

func TestPlaceBid_RejectedOnFixedSale(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	amount := big.NewInt(1_000_000)
	fx.ledger.Mint(tok, fx.buyer, amount)
	fx.ledger.Approve(tok, fx.buyer, fx.operator, amount)

	_, err := fx.place.Execute(context.Background(), PlaceBidDTO{
		Bidder:       fx.buyer,
		Medium:       tok,
		Amount:       amount,
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
	})
	require.ErrorIs(t, err, domain.ErrNotAnAuction)
	// funds were never locked
	require.Equal(t, amount, fx.balance(tok, fx.buyer))
}

func TestPlaceBid_DisabledMedium(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeAuction, 100_00000000)
	fx.registry.SetPaymentMedium(tok, fx.oracle, 18, false)

	_, err := fx.place.Execute(context.Background(), PlaceBidDTO{
		Bidder:       fx.buyer,
		Medium:       tok,
		Amount:       big.NewInt(1),
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
	})
	require.ErrorIs(t, err, domain.ErrMediumDisabled)
}

func TestAuction_AcceptSecondBidFirstStillRefundable(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeAuction, 100_00000000)

	bidderA, bidderB := uuid.New(), uuid.New()
	amountA := parseBig(t, "10000000000000000000")
	amountB := new(big.Int).Mul(amountA, big.NewInt(2))

	fx.ledger.Mint(tok, bidderA, amountA)
	fx.ledger.Approve(tok, bidderA, fx.operator, amountA)
	fx.ledger.Mint(tok, bidderB, amountB)
	fx.ledger.Approve(tok, bidderB, fx.operator, amountB)

	first, err := fx.place.Execute(context.Background(), PlaceBidDTO{
		Bidder: bidderA, Medium: tok, Amount: amountA,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	})
	require.NoError(t, err)
	second, err := fx.place.Execute(context.Background(), PlaceBidDTO{
		Bidder: bidderB, Medium: tok, Amount: amountB,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	})
	require.NoError(t, err)

	// both amounts are locked, not merely authorized
	require.Equal(t, big.NewInt(0), fx.balance(tok, bidderA))
	require.Equal(t, big.NewInt(0), fx.balance(tok, bidderB))

	// only the seller may accept
	err = fx.accept.Execute(context.Background(), AcceptBidDTO{
		Caller: bidderB, BidIndex: second.Index,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	})
	require.ErrorIs(t, err, domain.ErrNotSeller)

	require.NoError(t, fx.accept.Execute(context.Background(), AcceptBidDTO{
		Caller: fx.seller, BidIndex: second.Index,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	}))

	// asset goes to the accepted bidder, proceeds split seller/treasury
	require.Equal(t, bidderB, fx.ownerOf(key))
	accepted, ok := fx.events.last(t).(domain.BidAccepted)
	require.True(t, ok)
	require.Equal(t, bidderB, accepted.Bidder)
	require.Equal(t, second.Index, accepted.BidIndex)
	require.Equal(t, domain.BidStatusAccepted, second.Status)
	fee := parseBig(t, "500000000000000000") // 20e18 * 250 / 10000
	net := new(big.Int).Sub(amountB, fee)
	require.Equal(t, fee, fx.balance(tok, fx.treasury))
	require.Equal(t, net, fx.balance(tok, fx.seller))

	// the losing bid is untouched and still refundable, exactly once
	cancelCmd := CancelBidDTO{
		Caller: bidderA, BidIndex: first.Index,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	}
	require.NoError(t, fx.cancel.Execute(context.Background(), cancelCmd))
	require.Equal(t, amountA, fx.balance(tok, bidderA))
	cancelled, ok := fx.events.last(t).(domain.BidCancelled)
	require.True(t, ok)
	require.Equal(t, bidderA, cancelled.Bidder)
	require.Equal(t, domain.BidStatusCancelled, first.Status)
	require.ErrorIs(t, fx.cancel.Execute(context.Background(), cancelCmd), domain.ErrBidNotOpen)

	// the accepted bid cannot be cancelled for a refund
	err = fx.cancel.Execute(context.Background(), CancelBidDTO{
		Caller: bidderB, BidIndex: second.Index,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	})
	require.ErrorIs(t, err, domain.ErrBidNotOpen)
}

// saveTrackingListings counts Save calls so tests can assert an aggregate
// mutation was actually written back.
type saveTrackingListings struct {
	domain.ListingRepository
	saves int
}

func (s *saveTrackingListings) Save(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error {
	s.saves++
	return s.ListingRepository.Save(ctx, tx, listing)
}

func TestCancelBid_WritesListingBack(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	listing := fx.listAsset(key, domain.ModeAuction, 100_00000000)

	amount := parseBig(t, "1000000000000000000")
	fx.ledger.Mint(tok, fx.buyer, amount)
	fx.ledger.Approve(tok, fx.buyer, fx.operator, amount)

	bid, err := fx.place.Execute(context.Background(), PlaceBidDTO{
		Bidder: fx.buyer, Medium: tok, Amount: amount,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	})
	require.NoError(t, err)

	tracked := &saveTrackingListings{ListingRepository: fx.listings}
	fx.cancel.listings = tracked
	fx.now = fx.now.Add(time.Hour)

	require.NoError(t, fx.cancel.Execute(context.Background(), CancelBidDTO{
		Caller: fx.buyer, BidIndex: bid.Index,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	}))

	// the aggregate's timestamp moved with the cancellation and was persisted
	require.Equal(t, 1, tracked.saves)
	require.Equal(t, fx.now, listing.UpdatedAt)
}

func TestCancelBid_OnlyBidderMayCancel(t *testing.T) {
	fx := newFixture(t, feeBps, true)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeAuction, 100_00000000)

	amount := parseBig(t, "1000000000000000000")
	fx.ledger.Mint(tok, fx.buyer, amount)
	fx.ledger.Approve(tok, fx.buyer, fx.operator, amount)

	bid, err := fx.place.Execute(context.Background(), PlaceBidDTO{
		Bidder: fx.buyer, Medium: tok, Amount: amount,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	})
	require.NoError(t, err)

	err = fx.cancel.Execute(context.Background(), CancelBidDTO{
		Caller: uuid.New(), BidIndex: bid.Index,
		CollectionID: key.CollectionID, AssetID: key.AssetID,
	})
	require.ErrorIs(t, err, domain.ErrNotYourBid)
	// still locked
	require.Equal(t, big.NewInt(0), fx.balance(tok, fx.buyer))
}

func TestTreasuryPolicy_BlocksSalesUntilConfigured(t *testing.T) {
	// non-zero fee without a treasury: refuse before any custody movement
	fx := newFixture(t, feeBps, false)
	key := fx.mintAsset(fx.seller)

	_, err := fx.list.Execute(context.Background(), ListAssetDTO{
		Seller:         fx.seller,
		CollectionID:   key.CollectionID,
		AssetID:        key.AssetID,
		ReferencePrice: big.NewInt(100_00000000),
		Deadline:       fx.now.Add(time.Hour),
		Mode:           domain.ModeFixedSale,
	})
	require.ErrorIs(t, err, domain.ErrTreasuryNotConfigured)
	require.Equal(t, fx.seller, fx.ownerOf(key))
}

func TestTreasuryPolicy_ZeroFeeNeedsNoTreasury(t *testing.T) {
	fx := newFixture(t, 0, false)
	key := fx.mintAsset(fx.seller)
	fx.listAsset(key, domain.ModeFixedSale, 100_00000000)

	amount := parseBig(t, "50000000000000000000")
	fx.ledger.Mint(tok, fx.buyer, amount)
	fx.ledger.Approve(tok, fx.buyer, fx.operator, amount)

	require.NoError(t, fx.buy.Execute(context.Background(), BuyAssetDTO{
		Buyer:        fx.buyer,
		Medium:       tok,
		CollectionID: key.CollectionID,
		AssetID:      key.AssetID,
	}))

	// full gross reaches the seller, nothing is stranded in escrow
	require.Equal(t, amount, fx.balance(tok, fx.seller))
	require.Equal(t, big.NewInt(0), fx.balance(tok, fx.operator))
}
