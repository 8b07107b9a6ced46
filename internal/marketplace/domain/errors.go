package domain

import "errors"

// Precondition violations: rejected before any state or fund movement.
var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingNotActive    = errors.New("listing is not active")
	ErrAssetAlreadyListed  = errors.New("asset already has an active listing")
	ErrSaleDeadlinePassed  = errors.New("sale deadline has passed")
	ErrDeadlineNotInFuture = errors.New("sale deadline must be in the future")
	ErrNotAFixedSale       = errors.New("listing is not a fixed-price sale")
	ErrNotAnAuction        = errors.New("listing is not an auction")
	ErrNotSeller           = errors.New("caller is not the listing seller")
	ErrNotYourBid          = errors.New("caller is not the bidder of this bid")
	ErrBidNotFound         = errors.New("bid not found")
	ErrBidNotOpen          = errors.New("bid is not open")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
)

// Funds violations: rejected atomically, no partial transfer.
var (
	ErrMediumUnknown         = errors.New("payment medium is not registered")
	ErrMediumDisabled        = errors.New("payment medium is disabled")
	ErrOracleUnavailable     = errors.New("rate oracle is unavailable")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientPayment   = errors.New("native payment is below the required amount")
	ErrPullNotSupported      = errors.New("pull transfer is not supported for the native medium")
	ErrTreasuryNotConfigured = errors.New("treasury must be configured while the fee rate is non-zero")
)

// Invariant violations: unreachable given correct sequencing, indicate a defect.
var (
	ErrNotOwnerOrNotApproved = errors.New("caller is not the asset owner or is not approved")
	ErrNotInCustody          = errors.New("asset is not in marketplace custody")
)
