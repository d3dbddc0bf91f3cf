// Package random draws order attributes from the configured distributions.
//
// Every draw goes through one explicitly owned *rand.Rand, so a generator
// seeded with the same (seed, stream) pair reproduces its output exactly.
package random

import (
	"math"
	"math/rand/v2"

	. "ordergen/internal/common"
)

// maxOffset keeps a Laplace tail draw well inside int64 once added to the
// reference price.
const maxOffset = math.MaxInt64 / 4

// Params are the distribution parameters, taken from the run configuration.
type Params struct {
	BuyRatio     float64
	PriceDecay   float64 // Laplace rate λ
	LogNormMu    float64
	LogNormSigma float64
	AccountIDMax uint64
	PLimit       float64
	PMarket      float64
	PCancel      float64
}

type Distribution struct {
	rng    *rand.Rand
	params Params
}

// NewSource returns the PCG generator for a seed and stream. Distinct streams
// under one seed give independent sequences, which is what shards use.
func NewSource(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func New(rng *rand.Rand, params Params) *Distribution {
	return &Distribution{rng: rng, params: params}
}

// Rand exposes the underlying generator so that collaborators drawing their
// own decisions (cancel target selection) stay on the same stream.
func (d *Distribution) Rand() *rand.Rand {
	return d.rng
}

// PriceOffset samples a limit price around ref using a Laplace (double
// exponential) offset, f(x) = 0.5 * λ * exp(-λ|x|). The result is never
// below one.
func (d *Distribution) PriceOffset(ref uint64) uint64 {
	// u must lie in (-0.5, 0.5); -0.5 would put the inverse CDF at infinity.
	u := d.rng.Float64() - 0.5
	for u == -0.5 {
		u = d.rng.Float64() - 0.5
	}

	magnitude := -math.Log1p(-2*math.Abs(u)) / d.params.PriceDecay
	if magnitude > maxOffset {
		magnitude = maxOffset
	}
	// Truncates toward zero.
	offset := int64(math.Copysign(magnitude, u))

	price := int64(ref) + offset
	if price < 1 {
		return 1
	}
	return uint64(price)
}

// Quantity samples a log-normal quantity, rounded to the nearest integer
// and floored at one.
func (d *Distribution) Quantity() uint64 {
	q := math.Exp(d.params.LogNormMu + d.params.LogNormSigma*d.normal())
	q = math.Round(q)
	switch {
	case q < 1:
		return 1
	case q >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(q)
}

// normal draws a standard normal variate with the Box-Muller transform.
func (d *Distribution) normal() float64 {
	u1 := 1 - d.rng.Float64() // (0, 1], keeps the logarithm finite
	u2 := d.rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// AccountID is uniform over [1, AccountIDMax].
func (d *Distribution) AccountID() uint64 {
	return d.rng.Uint64N(d.params.AccountIDMax) + 1
}

// Side is Buy with probability BuyRatio.
func (d *Distribution) Side() Side {
	if d.rng.Float64() < d.params.BuyRatio {
		return Buy
	}
	return Sell
}

// EventType picks the next event kind. Without a live order a cancel is
// impossible, so the limit and market probabilities are renormalised to sum
// to one.
func (d *Distribution) EventType(hasLiveOrder bool) OrderType {
	u := d.rng.Float64()
	p := d.params

	if !hasLiveOrder {
		if u*(p.PLimit+p.PMarket) < p.PLimit {
			return LimitOrder
		}
		return MarketOrder
	}

	switch {
	case u < p.PLimit:
		return LimitOrder
	case u < p.PLimit+p.PMarket:
		return MarketOrder
	}
	return CancelOrder
}

// Drift returns the reference price step for one tick: -1, 0 or +1. The
// price stays put two thirds of the time.
func (d *Distribution) Drift() int64 {
	step := int64(d.rng.IntN(3)) - 1
	if d.rng.IntN(2) == 0 {
		return 0
	}
	return step
}
