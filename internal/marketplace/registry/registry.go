package registry

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/logger"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// referenceScale is the implied-decimal scale of the reference unit (USD, 8
// decimals). Oracle rates of any scale are normalized to it.
var referenceScale = big.NewInt(100_000_000)

// PaymentMedium is a registry entry: the oracle that prices the medium, the
// medium's smallest-unit decimals, and whether it is currently accepted.
type PaymentMedium struct {
	Oracle   domain.RateOracle
	Decimals uint8
	Enabled  bool
}

// Registry maps payment mediums to their oracle reference and enabled flag.
// It is the only source of rates for pricing and settlement; rates are cached
// with a short TTL so one oracle read serves a burst of quotes.
type Registry struct {
	mu      sync.RWMutex
	mediums map[domain.Medium]PaymentMedium
	rates   *cache.Cache
}

func New(rateTTL time.Duration) *Registry {
	return &Registry{
		mediums: make(map[domain.Medium]PaymentMedium),
		rates:   cache.New(rateTTL, 2*rateTTL),
	}
}

// SetPaymentMedium upserts a medium entry. Administrative: the capability
// check (who may call this) lives outside the engine, at the HTTP boundary.
// Idempotent; any cached rate for the medium is dropped.
func (r *Registry) SetPaymentMedium(medium domain.Medium, oracle domain.RateOracle, decimals uint8, enabled bool) {
	r.mu.Lock()
	r.mediums[medium] = PaymentMedium{Oracle: oracle, Decimals: decimals, Enabled: enabled}
	r.mu.Unlock()
	r.rates.Delete(medium.String())

	log.Info("Payment medium configured",
		zap.String("medium", medium.String()),
		zap.Uint8("decimals", decimals),
		zap.Bool("enabled", enabled),
	)
}

// Medium returns the entry for an enabled medium. ErrMediumUnknown for an
// unregistered one, ErrMediumDisabled for a registered-but-disabled one.
func (r *Registry) Medium(medium domain.Medium) (PaymentMedium, error) {
	r.mu.RLock()
	entry, ok := r.mediums[medium]
	r.mu.RUnlock()
	if !ok {
		return PaymentMedium{}, domain.ErrMediumUnknown
	}
	if !entry.Enabled {
		return PaymentMedium{}, domain.ErrMediumDisabled
	}
	return entry, nil
}

// UnitScale returns 10^decimals for an enabled medium (the value of one whole
// unit in its smallest unit).
func (r *Registry) UnitScale(medium domain.Medium) (*big.Int, error) {
	entry, err := r.Medium(medium)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(entry.Decimals)), nil), nil
}

// GetRate returns the current reference-unit rate (8 implied decimals) for
// one whole unit of the medium, reading the oracle through the TTL cache.
func (r *Registry) GetRate(ctx context.Context, medium domain.Medium) (*big.Int, error) {
	entry, err := r.Medium(medium)
	if err != nil {
		return nil, err
	}

	if cached, ok := r.rates.Get(medium.String()); ok {
		return new(big.Int).Set(cached.(*big.Int)), nil
	}

	value, scale, err := entry.Oracle.LatestRate(ctx)
	if err != nil {
		log.Error("Oracle read failed",
			zap.String("medium", medium.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s", domain.ErrOracleUnavailable, err)
	}
	if value == nil || value.Sign() <= 0 || scale == nil || scale.Sign() <= 0 {
		log.Error("Oracle returned unusable rate",
			zap.String("medium", medium.String()),
		)
		return nil, domain.ErrOracleUnavailable
	}

	// normalize to the reference scale: rate = value * 1e8 / scale
	rate := new(big.Int).Mul(value, referenceScale)
	rate.Quo(rate, scale)
	if rate.Sign() <= 0 {
		// rate rounds to zero at reference scale, unusable for pricing
		return nil, domain.ErrOracleUnavailable
	}

	r.rates.Set(medium.String(), new(big.Int).Set(rate), cache.DefaultExpiration)
	return rate, nil
}
