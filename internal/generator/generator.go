// Package generator produces the synthetic order event stream.
//
// A Generator is a per-tick state machine whose only state is its live
// order registry, the reference price and the next order id. It must be
// driven from a single goroutine: id assignment and registry mutation are
// not idempotent.
package generator

import (
	"errors"
	"fmt"
	"time"

	. "ordergen/internal/common"
	"ordergen/internal/config"
	"ordergen/internal/random"
	"ordergen/internal/registry"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// The top byte of every order id is the shard tag; the rest is a
	// per-shard sequence starting at one.
	shardShift  = 56
	sequenceMax = 1<<shardShift - 1
)

var ErrIDSpaceExhausted = errors.New("order id space exhausted")

// Emitter receives events in emission order.
type Emitter func(OrderEvent) error

// Decide resolves the sampled event type against the registry state before
// anything is mutated. A cancel with nothing live becomes a limit order;
// fallback reports that substitution.
func Decide(sampled OrderType, hasLive bool) (decided OrderType, fallback bool) {
	if sampled == CancelOrder && !hasLive {
		return LimitOrder, true
	}
	return sampled, false
}

type Generator struct {
	dist     *random.Distribution
	registry *registry.Registry

	reference uint64
	drift     bool

	shard  uint8
	nextID uint64

	stats Stats
}

// New builds the generator of one shard. Shard zero of a run is the plain
// single-threaded generator.
func New(cfg config.Config, shard uint8) *Generator {
	params := random.Params{
		BuyRatio:     cfg.BuyRatio,
		PriceDecay:   cfg.PriceDecay,
		LogNormMu:    cfg.LogNormMu,
		LogNormSigma: cfg.LogNormSigma,
		AccountIDMax: cfg.AccountIDMax,
		PLimit:       cfg.PLimit,
		PMarket:      cfg.PMarket,
		PCancel:      cfg.PCancel,
	}

	return &Generator{
		dist:      random.New(random.NewSource(cfg.Seed, uint64(shard)), params),
		registry:  registry.New(cfg.FarThreshold, cfg.FarBias),
		reference: cfg.FairPrice,
		drift:     cfg.Drift,
		shard:     shard,
		nextID:    1,
		stats: Stats{
			RunID: uuid.NewString(),
			Shard: shard,
		},
	}
}

// Registry exposes the live order registry for inspection.
func (g *Generator) Registry() *registry.Registry {
	return g.registry
}

// ReferencePrice is the current reference price.
func (g *Generator) ReferencePrice() uint64 {
	return g.reference
}

func (g *Generator) Stats() Stats {
	s := g.stats
	s.LiveOrders = g.registry.Len()
	s.ReferencePrice = g.reference
	return s
}

// Next advances the machine by one tick and returns the event it produced.
func (g *Generator) Next() (OrderEvent, error) {
	if g.drift {
		g.applyDrift(g.dist.Drift())
	}

	hasLive := g.registry.HasLiveOrders()
	kind, fallback := Decide(g.dist.EventType(hasLive), hasLive)
	if fallback {
		g.recordFallback()
	}

	var (
		e   OrderEvent
		err error
	)
	switch kind {
	case LimitOrder:
		e, err = g.limit()
	case MarketOrder:
		e, err = g.market()
	case CancelOrder:
		e, err = g.cancel()
	default:
		err = fmt.Errorf("unexpected event type %v", kind)
	}
	if err != nil {
		return OrderEvent{}, err
	}

	g.stats.Ticks++
	return e, nil
}

// Run drives n ticks into emit and stops at the first error.
func (g *Generator) Run(n uint64, emit Emitter) (Stats, error) {
	start := time.Now()
	defer func() {
		g.stats.Elapsed += time.Since(start)
	}()

	for i := uint64(0); i < n; i++ {
		e, err := g.Next()
		if err != nil {
			return g.Stats(), err
		}
		if err := emit(e); err != nil {
			return g.Stats(), fmt.Errorf("unable to emit event %d: %w", e.OrderID, err)
		}
	}
	return g.Stats(), nil
}

func (g *Generator) limit() (OrderEvent, error) {
	side := g.dist.Side()
	price := g.dist.PriceOffset(g.reference)
	quantity := g.dist.Quantity()
	account := g.dist.AccountID()

	id, err := g.newID()
	if err != nil {
		return OrderEvent{}, err
	}
	if err := g.registry.Insert(id, price, g.reference); err != nil {
		return OrderEvent{}, fmt.Errorf("unable to track order %d: %w", id, err)
	}

	g.stats.Limits++
	return OrderEvent{
		Side:      side,
		Type:      LimitOrder,
		AccountID: account,
		Price:     price,
		Quantity:  quantity,
		OrderID:   id,
	}, nil
}

func (g *Generator) market() (OrderEvent, error) {
	side := g.dist.Side()
	quantity := g.dist.Quantity()
	account := g.dist.AccountID()

	id, err := g.newID()
	if err != nil {
		return OrderEvent{}, err
	}

	g.stats.Markets++
	return OrderEvent{
		Side:      side,
		Type:      MarketOrder,
		AccountID: account,
		Quantity:  quantity,
		OrderID:   id,
	}, nil
}

func (g *Generator) cancel() (OrderEvent, error) {
	id, err := g.registry.PickForCancel(g.dist.Rand())
	if errors.Is(err, registry.ErrEmpty) {
		g.recordFallback()
		return g.limit()
	}
	if err != nil {
		return OrderEvent{}, err
	}

	g.stats.Cancels++
	return OrderEvent{
		Side:    Buy,
		Type:    CancelOrder,
		OrderID: id,
	}, nil
}

func (g *Generator) recordFallback() {
	g.stats.Fallbacks++
	log.Warn().
		Str("run", g.stats.RunID).
		Uint8("shard", g.shard).
		Uint64("tick", g.stats.Ticks).
		Msg("cancel selected with no live orders, emitting limit instead")
}

// applyDrift nudges the reference price, never below one. Resting orders
// keep the price and pool they were inserted with.
func (g *Generator) applyDrift(step int64) {
	switch {
	case step < 0 && g.reference > 1:
		g.reference--
	case step > 0:
		g.reference++
	}
}

func (g *Generator) newID() (uint64, error) {
	if g.nextID > sequenceMax {
		return 0, ErrIDSpaceExhausted
	}
	id := uint64(g.shard)<<shardShift | g.nextID
	g.nextID++
	return id, nil
}

// ShardOf returns the shard tag of an order id.
func ShardOf(id uint64) uint8 {
	return uint8(id >> shardShift)
}
