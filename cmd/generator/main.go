package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ordergen/internal/config"
	"ordergen/internal/generator"
	"ordergen/internal/net"
	"ordergen/internal/sink"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// 1. CLI Parameter Parsing
	envPath := flag.String("env", "", "Path to a .env file (defaults to ./.env if present)")
	legacy := flag.Bool("legacy", false, "Start from the legacy limit-only framed big-endian preset")
	out := flag.String("out", "orders.bin", "Binary output path")
	csvPath := flag.String("csv", "", "Optional CSV dump path")
	compress := flag.String("compress", "none", "Binary output compression: ['none', 'zstd', 'lz4']")
	verbose := flag.Bool("v", false, "Debug logging")

	// Generation Parameters, these override the environment.
	n := flag.Uint64("n", 0, "Number of events to generate")
	seed := flag.Uint64("seed", 0, "Random seed")
	layout := flag.String("layout", "", "Wire layout: ['fixed-le', 'framed-be']")
	drift := flag.Bool("drift", false, "Random-walk the reference price")
	shards := flag.Int("shards", 0, "Number of independent generator shards")

	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	base := config.Default()
	if *legacy {
		base = config.Legacy()
	}
	cfg, err := config.LoadFromEnv(base, *envPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load configuration")
	}

	// Only explicitly set flags take precedence over the environment.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.N = *n
		case "seed":
			cfg.Seed = *seed
		case "drift":
			cfg.Drift = *drift
		case "shards":
			cfg.Shards = *shards
		case "layout":
			if cfg.Layout, err = config.ParseLayout(*layout); err != nil {
				flagErr = err
			}
		}
	})
	if flagErr != nil {
		log.Fatal().Err(flagErr).Msg("invalid flag")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	comp, err := sink.ParseCompression(*compress)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flag")
	}
	codec, err := net.NewCodec(cfg.Layout)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg, codec, comp, *out, *csvPath); err != nil {
		log.Error().Err(err).Msg("generation failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, codec net.Codec, comp sink.Compression, out, csvPath string) error {
	var (
		mu      sync.Mutex
		closers []func() error
	)
	track := func(closeFn func() error) {
		mu.Lock()
		defer mu.Unlock()
		closers = append(closers, closeFn)
	}

	// Each shard gets its own binary and CSV file.
	open := func(shard uint8) (generator.Emitter, error) {
		bin, err := sink.Create(sink.ShardPath(out, shard, cfg.Shards), codec, comp)
		if err != nil {
			return nil, err
		}
		track(bin.Close)
		if csvPath == "" {
			return bin.Emit, nil
		}

		dump, err := sink.CreateCSV(sink.ShardPath(csvPath, shard, cfg.Shards))
		if err != nil {
			return nil, err
		}
		track(dump.Close)
		return generator.Tee(bin.Emit, dump.Emit), nil
	}

	log.Info().
		Uint64("n", cfg.N).
		Uint64("seed", cfg.Seed).
		Uint64("fair_price", cfg.FairPrice).
		Str("layout", cfg.Layout.String()).
		Str("compression", comp.String()).
		Int("shards", cfg.Shards).
		Bool("drift", cfg.Drift).
		Msg("generating orders")

	total, _, runErr := generator.RunShards(ctx, cfg, open)

	var closeErr error
	for _, closeFn := range closers {
		closeErr = errors.Join(closeErr, closeFn())
	}
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("unable to close output: %w", closeErr)
	}

	log.Info().
		Str("run", total.RunID).
		Uint64("events", total.Ticks).
		Uint64("limits", total.Limits).
		Uint64("markets", total.Markets).
		Uint64("cancels", total.Cancels).
		Uint64("fallbacks", total.Fallbacks).
		Int("live", total.LiveOrders).
		Dur("elapsed", total.Elapsed).
		Float64("events_per_sec", total.Rate()).
		Msgf("generated %d orders around mid=%d", total.Ticks, cfg.FairPrice)
	return nil
}
