package registry

import (
	"errors"

	"github.com/tidwall/btree"
)

var (
	ErrEmpty     = errors.New("no live orders to cancel")
	ErrDuplicate = errors.New("order id already live")
)

// Picker is the source of randomness used to choose a cancel target.
// *rand.Rand satisfies it.
type Picker interface {
	Float64() float64
	IntN(n int) int
}

type PriceLevel struct {
	price uint64
	ids   []uint64 // Stack: the last inserted id is cancelled first.
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// Pool is one side of the near/far partition.
type Pool string

const (
	Near Pool = "near"
	Far  Pool = "far"
)

// Registry tracks currently resting order ids, split into two price keyed
// pools by their distance from the reference price at insertion time.
//
// An id is in at most one pool, and in a pool if and only if it is live.
// Registry is not safe for concurrent use; each generator owns one.
type Registry struct {
	farThreshold uint64
	farBias      float64

	live map[uint64]Pool

	// Price levels to ids, sorted by price so that a positional lookup gives
	// a deterministic, uniform choice among the keys.
	near *PriceLevels
	far  *PriceLevels
}

func New(farThreshold uint64, farBias float64) *Registry {
	less := func(a, b *PriceLevel) bool {
		return a.price < b.price
	}
	return &Registry{
		farThreshold: farThreshold,
		farBias:      farBias,
		live:         make(map[uint64]Pool),
		near:         btree.NewBTreeG(less),
		far:          btree.NewBTreeG(less),
	}
}

// Insert records a newly resting order. The order is classified as far when
// its price is more than the far threshold away from ref.
func (r *Registry) Insert(id, price, ref uint64) error {
	if _, ok := r.live[id]; ok {
		return ErrDuplicate
	}

	pool := Near
	levels := r.near
	if distance(price, ref) > r.farThreshold {
		pool = Far
		levels = r.far
	}

	// Levels comparator only accounts for the price, so a dummy level is
	// enough for the search.
	level, ok := levels.GetMut(&PriceLevel{price: price})
	if ok {
		level.ids = append(level.ids, id)
	} else {
		levels.Set(&PriceLevel{
			price: price,
			ids:   []uint64{id},
		})
	}
	r.live[id] = pool
	return nil
}

// HasLiveOrders reports whether any order could be cancelled.
func (r *Registry) HasLiveOrders() bool {
	return len(r.live) > 0
}

// PickForCancel removes and returns a live order id.
//
// The far pool is preferred with probability farBias, falling back to the
// other pool when the preferred one is empty. A price is then chosen
// uniformly among the pool's levels and the most recently inserted id at
// that price is popped.
func (r *Registry) PickForCancel(p Picker) (uint64, error) {
	if !r.HasLiveOrders() {
		return 0, ErrEmpty
	}

	// Always draw, so the stream does not depend on which pools are empty.
	levels, other := r.near, r.far
	if p.Float64() < r.farBias {
		levels, other = r.far, r.near
	}
	if levels.Len() == 0 {
		levels = other
	}

	level, ok := levels.GetAt(p.IntN(levels.Len()))
	if !ok {
		// Unreachable while live and the pools agree.
		return 0, ErrEmpty
	}

	n := len(level.ids)
	id := level.ids[n-1]
	level.ids = level.ids[:n-1]
	if len(level.ids) == 0 {
		levels.Delete(level)
	}

	delete(r.live, id)
	return id, nil
}

// Contains reports whether id is live.
func (r *Registry) Contains(id uint64) bool {
	_, ok := r.live[id]
	return ok
}

// PoolOf returns the pool holding id, if it is live.
func (r *Registry) PoolOf(id uint64) (Pool, bool) {
	pool, ok := r.live[id]
	return pool, ok
}

// Len is the number of live orders.
func (r *Registry) Len() int {
	return len(r.live)
}

// NearLevels and FarLevels are the number of distinct resting prices per pool.
func (r *Registry) NearLevels() int { return r.near.Len() }
func (r *Registry) FarLevels() int  { return r.far.Len() }

// FlatPriceLevel is an exported view of a price level, used for inspection.
type FlatPriceLevel struct {
	Price uint64
	IDs   []uint64
}

// Levels flattens a pool in ascending price order.
func (r *Registry) Levels(pool Pool) []FlatPriceLevel {
	levels := r.near
	if pool == Far {
		levels = r.far
	}

	flat := make([]FlatPriceLevel, 0, levels.Len())
	levels.Scan(func(level *PriceLevel) bool {
		ids := make([]uint64, len(level.ids))
		copy(ids, level.ids)
		flat = append(flat, FlatPriceLevel{Price: level.price, IDs: ids})
		return true
	})
	return flat
}

func distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
