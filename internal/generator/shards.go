package generator

import (
	"context"
	"errors"
	"runtime"

	. "ordergen/internal/common"
	"ordergen/internal/config"
	"ordergen/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// How many ticks a shard runs between checks for cancellation.
const dyingCheckInterval = 1024

var ErrImproperConversion = errors.New("improper type conversion")

// ShardSink opens the emitter of one shard. It is called from the worker
// running that shard, once, before its first tick.
type ShardSink func(shard uint8) (Emitter, error)

type shardTask struct {
	shard uint8
	ticks uint64
}

// SplitTicks divides n ticks over the shards, giving the remainder to the
// lowest shards.
func SplitTicks(n uint64, shards int) []uint64 {
	split := make([]uint64, shards)
	for i := range split {
		split[i] = n / uint64(shards)
		if uint64(i) < n%uint64(shards) {
			split[i]++
		}
	}
	return split
}

// RunShards runs cfg.Shards independent generators, each with its own
// registry, random stream and order id namespace, and returns the combined
// and per-shard statistics. Events of a shard reach its emitter in order;
// there is no ordering across shards.
func RunShards(ctx context.Context, cfg config.Config, open ShardSink) (Stats, []Stats, error) {
	runID := uuid.NewString()
	perShard := make([]Stats, cfg.Shards)

	t, _ := tomb.WithContext(ctx)
	pool := utils.NewWorkerPool(uint(min(cfg.Shards, runtime.GOMAXPROCS(0))))

	work := func(t *tomb.Tomb, task any) error {
		st, ok := task.(shardTask)
		if !ok {
			return ErrImproperConversion
		}

		emit, err := open(st.shard)
		if err != nil {
			return err
		}

		g := New(cfg, st.shard)
		g.stats.RunID = runID

		var ticks uint64
		stats, err := g.Run(st.ticks, func(e OrderEvent) error {
			ticks++
			if ticks%dyingCheckInterval == 0 && !t.Alive() {
				return tomb.ErrDying
			}
			return emit(e)
		})
		perShard[st.shard] = stats
		if err != nil {
			return err
		}

		log.Info().
			Str("run", runID).
			Uint8("shard", st.shard).
			Uint64("ticks", stats.Ticks).
			Uint64("fallbacks", stats.Fallbacks).
			Int("live", stats.LiveOrders).
			Msg("shard finished")
		return nil
	}

	pool.Setup(t, work)
	for shard, ticks := range SplitTicks(cfg.N, cfg.Shards) {
		if !pool.AddTask(t, shardTask{shard: uint8(shard), ticks: ticks}) {
			break
		}
	}
	pool.Close()

	err := t.Wait()

	total := Stats{RunID: runID}
	for _, s := range perShard {
		total.Add(s)
	}
	if len(perShard) == 1 {
		total.ReferencePrice = perShard[0].ReferencePrice
	}
	return total, perShard, err
}
