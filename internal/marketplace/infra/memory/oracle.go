package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
)

// Oracle is a fixed-rate in-memory price source, the stand-in for an external
// rate oracle. Rate and scale are settable so tests can simulate rate moves
// and outages.
type Oracle struct {
	mu    sync.Mutex
	value *big.Int
	scale *big.Int
	err   error
}

// NewOracle builds an oracle reporting value/scale reference units per whole
// medium unit.
func NewOracle(value, scale *big.Int) *Oracle {
	return &Oracle{
		value: new(big.Int).Set(value),
		scale: new(big.Int).Set(scale),
	}
}

// SetRate updates the reported rate.
func (o *Oracle) SetRate(value, scale *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = new(big.Int).Set(value)
	o.scale = new(big.Int).Set(scale)
}

// Fail makes subsequent reads return err (nil restores service).
func (o *Oracle) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *Oracle) LatestRate(ctx context.Context) (*big.Int, *big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, nil, o.err
	}
	return new(big.Int).Set(o.value), new(big.Int).Set(o.scale), nil
}

var _ domain.RateOracle = (*Oracle)(nil)
