package application

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var feeDenominator = big.NewInt(10_000)

// Settlement splits a gross sale amount between the seller and the treasury.
// fee = gross * feeRateBps / 10000 with truncating division, net = gross - fee,
// so the truncation remainder always rides with the seller's net and the sum
// of disbursed funds equals gross exactly.
type Settlement struct {
	ledger     domain.Ledger
	operator   uuid.UUID
	treasury   uuid.UUID
	feeRateBps uint32
}

func NewSettlement(ledger domain.Ledger, operator, treasury uuid.UUID, feeRateBps uint32) *Settlement {
	return &Settlement{
		ledger:     ledger,
		operator:   operator,
		treasury:   treasury,
		feeRateBps: feeRateBps,
	}
}

// EnsureConfigured enforces the fee policy up front: while the fee rate is
// non-zero a sale cannot even start without a treasury, so proceeds never
// accumulate in the operator account waiting for one to be configured.
func (s *Settlement) EnsureConfigured() error {
	if s.feeRateBps > 0 && s.treasury == uuid.Nil {
		return domain.ErrTreasuryNotConfigured
	}
	return nil
}

// Settle moves the escrowed gross amount out of the operator account: fee to
// the treasury, net to the seller. Callers settle only funds already locked
// in escrow, so a transfer failure here is a custody/state mismatch.
func (s *Settlement) Settle(ctx context.Context, medium domain.Medium, gross *big.Int, seller uuid.UUID) error {
	if err := s.EnsureConfigured(); err != nil {
		return err
	}

	fee := new(big.Int).Mul(gross, big.NewInt(int64(s.feeRateBps)))
	fee.Quo(fee, feeDenominator)
	net := new(big.Int).Sub(gross, fee)

	if fee.Sign() > 0 {
		if err := s.ledger.Transfer(ctx, medium, s.operator, s.treasury, fee); err != nil {
			log.Error("Settlement fee transfer failed",
				zap.String("medium", medium.String()),
				zap.String("fee", fee.String()),
				zap.Error(err),
			)
			return fmt.Errorf("settle fee: %w", err)
		}
	}
	if net.Sign() > 0 {
		if err := s.ledger.Transfer(ctx, medium, s.operator, seller, net); err != nil {
			log.Error("Settlement payout transfer failed",
				zap.String("medium", medium.String()),
				zap.String("net", net.String()),
				zap.String("seller", seller.String()),
				zap.Error(err),
			)
			return fmt.Errorf("settle payout: %w", err)
		}
	}

	log.Info("Sale settled",
		zap.String("medium", medium.String()),
		zap.String("gross", gross.String()),
		zap.String("fee", fee.String()),
		zap.String("net", net.String()),
		zap.String("seller", seller.String()),
	)
	return nil
}
