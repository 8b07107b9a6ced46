package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds the marketplace runtime settings loaded from the environment.
// The operator identity is the escrow account: it holds listed assets and
// locked bid funds. Treasury may be left unset (uuid.Nil) only while the fee
// rate is zero, settlement refuses to run otherwise.
type Config struct {
	HTTPAddr     string
	OperatorID   uuid.UUID
	TreasuryID   uuid.UUID
	FeeRateBps   uint32
	RateCacheTTL time.Duration
}

// Load reads the .env file if present and builds the Config from env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":9000"),
		RateCacheTTL: 30 * time.Second,
	}

	operator := os.Getenv("MARKET_OPERATOR_ID")
	if operator == "" {
		return nil, fmt.Errorf("config: MARKET_OPERATOR_ID is required")
	}
	operatorID, err := uuid.Parse(operator)
	if err != nil {
		return nil, fmt.Errorf("config: invalid MARKET_OPERATOR_ID: %w", err)
	}
	cfg.OperatorID = operatorID

	// treasury is optional, settlement enforces the fee policy against it
	if treasury := os.Getenv("MARKET_TREASURY_ID"); treasury != "" {
		treasuryID, err := uuid.Parse(treasury)
		if err != nil {
			return nil, fmt.Errorf("config: invalid MARKET_TREASURY_ID: %w", err)
		}
		cfg.TreasuryID = treasuryID
	}

	if feeBps := os.Getenv("MARKET_FEE_BPS"); feeBps != "" {
		bps, err := strconv.ParseUint(feeBps, 10, 32)
		if err != nil || bps > 10000 {
			return nil, fmt.Errorf("config: MARKET_FEE_BPS must be an integer in [0,10000], got %q", feeBps)
		}
		cfg.FeeRateBps = uint32(bps)
	}

	if ttl := os.Getenv("RATE_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("config: invalid RATE_CACHE_TTL: %w", err)
		}
		cfg.RateCacheTTL = d
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
