package application

import (
	"context"
	"math/big"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
)

// lockFunds moves amount of medium from payer into the escrow account. The
// native medium is push-style (the payer's own authority travels with the
// call), fungible mediums are pull-style against the payer's allowance.
func lockFunds(ctx context.Context, ledger domain.Ledger, medium domain.Medium, operator, payer uuid.UUID, amount *big.Int) error {
	if medium.IsNative() {
		return ledger.Transfer(ctx, medium, payer, operator, amount)
	}
	return ledger.TransferFrom(ctx, medium, operator, payer, operator, amount)
}

// releaseFunds moves escrowed funds from the operator account to a recipient.
func releaseFunds(ctx context.Context, ledger domain.Ledger, medium domain.Medium, operator, to uuid.UUID, amount *big.Int) error {
	return ledger.Transfer(ctx, medium, operator, to, amount)
}
