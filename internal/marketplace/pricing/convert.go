package pricing

import (
	"context"
	"math/big"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/registry"
)

// Converter turns a reference-unit price into a payment-medium amount using
// the medium's registered oracle rate.
type Converter struct {
	registry *registry.Registry
}

func NewConverter(reg *registry.Registry) *Converter {
	return &Converter{registry: reg}
}

// Convert computes amount = referencePrice * 10^decimals / rate, in the
// medium's smallest unit. The multiplication MUST happen before the division:
// dividing first truncates away up to a whole rate's worth of value and would
// let a buyer underpay the asking price. Division truncates toward zero.
func (c *Converter) Convert(ctx context.Context, referencePrice *big.Int, medium domain.Medium) (*big.Int, error) {
	if referencePrice == nil || referencePrice.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	unitScale, err := c.registry.UnitScale(medium)
	if err != nil {
		return nil, err
	}
	rate, err := c.registry.GetRate(ctx, medium)
	if err != nil {
		return nil, err
	}

	amount := new(big.Int).Mul(referencePrice, unitScale)
	amount.Quo(amount, rate)
	return amount, nil
}
