package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
)

type holderKey struct {
	medium domain.Medium
	holder uuid.UUID
}

type allowanceKey struct {
	medium  domain.Medium
	owner   uuid.UUID
	spender uuid.UUID
}

// Ledger is an in-memory multi-medium balance book, the stand-in for the
// external fungible-token ledgers and the native-currency transfer. Fungible
// pulls burn allowance, the native medium supports push-style transfers only.
type Ledger struct {
	mu         sync.Mutex
	balances   map[holderKey]*big.Int
	allowances map[allowanceKey]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[holderKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// Mint credits holder with amount of medium. Test/bootstrap helper.
func (l *Ledger) Mint(medium domain.Medium, holder uuid.UUID, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(medium, holder, amount)
}

// Approve sets spender's allowance over owner's funds of medium.
func (l *Ledger) Approve(medium domain.Medium, owner, spender uuid.UUID, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{medium, owner, spender}] = new(big.Int).Set(amount)
}

func (l *Ledger) BalanceOf(ctx context.Context, medium domain.Medium, holder uuid.UUID) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(medium, holder)), nil
}

// Transfer moves funds on the sender's own authority.
func (l *Ledger) Transfer(ctx context.Context, medium domain.Medium, from, to uuid.UUID, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(medium, from, to, amount)
}

// TransferFrom is the allowance-checked pull path. It moves exactly amount,
// never more, and fails without any partial transfer.
func (l *Ledger) TransferFrom(ctx context.Context, medium domain.Medium, spender, from, to uuid.UUID, amount *big.Int) error {
	if medium.IsNative() {
		return domain.ErrPullNotSupported
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if spender != from {
		allowance, ok := l.allowances[allowanceKey{medium, from, spender}]
		if !ok || allowance.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}
		if err := l.move(medium, from, to, amount); err != nil {
			return err
		}
		allowance.Sub(allowance, amount)
		return nil
	}
	return l.move(medium, from, to, amount)
}

func (l *Ledger) balance(medium domain.Medium, holder uuid.UUID) *big.Int {
	b, ok := l.balances[holderKey{medium, holder}]
	if !ok {
		b = big.NewInt(0)
		l.balances[holderKey{medium, holder}] = b
	}
	return b
}

func (l *Ledger) credit(medium domain.Medium, holder uuid.UUID, amount *big.Int) {
	l.balance(medium, holder).Add(l.balance(medium, holder), amount)
}

func (l *Ledger) move(medium domain.Medium, from, to uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	fromBalance := l.balance(medium, from)
	if fromBalance.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	fromBalance.Sub(fromBalance, amount)
	l.credit(medium, to, amount)
	return nil
}
