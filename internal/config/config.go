package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownLayout = errors.New("unknown wire layout")
)

// Layout selects the wire encoding. The two layouts are not wire compatible.
type Layout int

const (
	// LayoutFixedLE is the canonical 32-byte little-endian record.
	LayoutFixedLE Layout = iota
	// LayoutFramedBE is the legacy length-prefixed big-endian message. It
	// has no room for an event type or order id.
	LayoutFramedBE
)

func (l Layout) String() string {
	switch l {
	case LayoutFixedLE:
		return "fixed-le"
	case LayoutFramedBE:
		return "framed-be"
	}
	return "unknown"
}

// ParseLayout accepts the names produced by Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed-le", "fixed", "le":
		return LayoutFixedLE, nil
	case "framed-be", "framed", "be", "legacy":
		return LayoutFramedBE, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
}

// probabilityTolerance bounds the rounding slack allowed when checking that
// the event probabilities sum to one.
const probabilityTolerance = 1e-9

// maxShards is bounded by the 8-bit shard tag carried in every order id.
const maxShards = 256

type Config struct {
	N    uint64 // Number of ticks to generate
	Seed uint64

	FairPrice    uint64  // Initial reference price
	FarThreshold uint64  // Distance from the reference price beyond which an order is "far"
	FarBias      float64 // Probability of cancelling from the far pool
	Drift        bool    // Random-walk the reference price before each tick

	AccountIDMax uint64
	BuyRatio     float64
	PriceDecay   float64 // Laplace rate for the price offset
	LogNormMu    float64
	LogNormSigma float64

	PLimit  float64
	PMarket float64
	PCancel float64

	Layout Layout
	Shards int
}

func Default() Config {
	return Config{
		N:            1_000_000,
		Seed:         42,
		FairPrice:    100_000,
		FarThreshold: 500,
		FarBias:      0.8,
		Drift:        false,
		AccountIDMax: 100_000,
		BuyRatio:     0.52,
		PriceDecay:   0.003,
		LogNormMu:    math.Log(8), // median ~8
		LogNormSigma: 1.0,
		PLimit:       0.6,
		PMarket:      0.1,
		PCancel:      0.3,
		Layout:       LayoutFixedLE,
		Shards:       1,
	}
}

// Legacy returns the configuration of the original limit-only generator:
// framed big-endian messages around a drifting mid price.
func Legacy() Config {
	cfg := Default()
	cfg.Drift = true
	cfg.PLimit = 1
	cfg.PMarket = 0
	cfg.PCancel = 0
	cfg.Layout = LayoutFramedBE
	return cfg
}

// Validate fails fast on any configuration the generator cannot honour.
func (c Config) Validate() error {
	if c.AccountIDMax < 1 {
		return fmt.Errorf("%w: ACCOUNT_ID_MAX must be at least 1", ErrInvalidConfig)
	}
	if c.Layout == LayoutFixedLE && c.AccountIDMax > math.MaxUint32 {
		return fmt.Errorf("%w: ACCOUNT_ID_MAX %d does not fit the 4 byte account field of %v",
			ErrInvalidConfig, c.AccountIDMax, c.Layout)
	}
	if c.Layout != LayoutFixedLE && c.Layout != LayoutFramedBE {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrUnknownLayout)
	}
	if c.FairPrice < 1 {
		return fmt.Errorf("%w: FAIR_PRICE must be at least 1", ErrInvalidConfig)
	}
	if c.FairPrice > math.MaxInt64/2 {
		return fmt.Errorf("%w: FAIR_PRICE %d is out of range", ErrInvalidConfig, c.FairPrice)
	}

	for name, p := range map[string]float64{
		"BUY_RATIO": c.BuyRatio,
		"FAR_BIAS":  c.FarBias,
		"P_LIMIT":   c.PLimit,
		"P_MARKET":  c.PMarket,
		"P_CANCEL":  c.PCancel,
	} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidConfig, name, p)
		}
	}
	if sum := c.PLimit + c.PMarket + c.PCancel; math.Abs(sum-1) > probabilityTolerance {
		return fmt.Errorf("%w: P_LIMIT + P_MARKET + P_CANCEL must sum to 1, got %v", ErrInvalidConfig, sum)
	}
	// With no live orders only limit and market orders can be drawn.
	if c.PLimit+c.PMarket <= 0 {
		return fmt.Errorf("%w: P_LIMIT + P_MARKET must be positive", ErrInvalidConfig)
	}
	if c.Layout == LayoutFramedBE && c.PCancel > 0 {
		return fmt.Errorf("%w: layout %v cannot carry cancels, P_CANCEL must be 0", ErrInvalidConfig, c.Layout)
	}

	if !(c.PriceDecay > 0) || math.IsInf(c.PriceDecay, 0) {
		return fmt.Errorf("%w: PRICE_DECAY must be positive and finite", ErrInvalidConfig)
	}
	if math.IsNaN(c.LogNormMu) || math.IsInf(c.LogNormMu, 0) {
		return fmt.Errorf("%w: LOGNORM_MU must be finite", ErrInvalidConfig)
	}
	if math.IsNaN(c.LogNormSigma) || math.IsInf(c.LogNormSigma, 0) || c.LogNormSigma < 0 {
		return fmt.Errorf("%w: LOGNORM_SIGMA must be finite and non-negative", ErrInvalidConfig)
	}
	if c.Shards < 1 || c.Shards > maxShards {
		return fmt.Errorf("%w: SHARDS must be within [1, %d], got %d", ErrInvalidConfig, maxShards, c.Shards)
	}
	return nil
}

// LoadFromEnv loads configuration from a .env file (if it exists) and the
// environment, on top of base.
// Priority: ENV > .env file > base
func LoadFromEnv(base Config, envPath string) (Config, error) {
	cfg := base

	// The .env file is optional.
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	var errs []error
	uintVar := func(key string, dst *uint64) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	floatVar := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	uintVar("N", &cfg.N)
	uintVar("SEED", &cfg.Seed)
	uintVar("FAIR_PRICE", &cfg.FairPrice)
	uintVar("FAR_THRESHOLD", &cfg.FarThreshold)
	uintVar("ACCOUNT_ID_MAX", &cfg.AccountIDMax)
	floatVar("FAR_BIAS", &cfg.FarBias)
	floatVar("BUY_RATIO", &cfg.BuyRatio)
	floatVar("PRICE_DECAY", &cfg.PriceDecay)
	floatVar("LOGNORM_MU", &cfg.LogNormMu)
	floatVar("LOGNORM_SIGMA", &cfg.LogNormSigma)
	floatVar("P_LIMIT", &cfg.PLimit)
	floatVar("P_MARKET", &cfg.PMarket)
	floatVar("P_CANCEL", &cfg.PCancel)

	if v := os.Getenv("DRIFT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DRIFT: %w", err))
		} else {
			cfg.Drift = b
		}
	}
	if v := os.Getenv("LAYOUT"); v != "" {
		l, err := ParseLayout(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LAYOUT: %w", err))
		} else {
			cfg.Layout = l
		}
	}
	if v := os.Getenv("SHARDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SHARDS: %w", err))
		} else {
			cfg.Shards = n
		}
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}
