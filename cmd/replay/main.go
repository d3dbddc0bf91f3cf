package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"ordergen/internal/common"
	"ordergen/internal/config"
	ordernet "ordergen/internal/net"
	"ordergen/internal/sink"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:8080", "Address of the exchange server")
	action := flag.String("action", "replay", "Action to perform: ['replay', 'send']")
	layoutStr := flag.String("layout", "fixed-le", "Wire layout: ['fixed-le', 'framed-be']")

	// Replay Parameters
	in := flag.String("in", "orders.bin", "Generated binary file to replay")
	compress := flag.String("compress", "none", "Compression of the input file: ['none', 'zstd', 'lz4']")
	chunk := flag.Int("chunk", 4096, "Bytes per socket write")

	// Single Order Parameters
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	price := flag.Uint64("price", 100, "Limit price in ticks")
	qty := flag.Uint64("qty", 42, "Quantity")
	account := flag.Uint64("account", 1, "Account id")
	orderID := flag.Uint64("id", 1, "Order id (fixed-le only)")

	flag.Parse()

	host, portStr, err := net.SplitHostPort(*serverAddr)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("invalid server address")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("invalid server port")
	}

	layout, err := config.ParseLayout(*layoutStr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flag")
	}
	codec, err := ordernet.NewCodec(layout)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flag")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	streamer := ordernet.NewStreamer(host, port).WithChunkSize(*chunk)

	// Execute Action
	switch strings.ToLower(*action) {
	case "replay":
		comp, err := sink.ParseCompression(*compress)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid flag")
		}
		src, err := sink.OpenRaw(*in, comp)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to open input")
		}
		defer src.Close()

		report, err := streamer.Replay(ctx, src, codec.Size())
		if err != nil {
			log.Error().Err(err).Msg("replay failed")
			os.Exit(1)
		}
		fmt.Printf("Replayed %d orders in %.3fs -> %.0f orders/sec\n",
			report.Records, report.Elapsed.Seconds(), report.Rate())

	case "send":
		side := common.Buy
		if strings.ToLower(*sideStr) == "sell" {
			side = common.Sell
		}
		e := common.OrderEvent{
			Side:      side,
			Type:      common.LimitOrder,
			AccountID: *account,
			Price:     *price,
			Quantity:  *qty,
			OrderID:   *orderID,
		}
		if strings.ToLower(*typeStr) == "market" {
			e.Type = common.MarketOrder
			e.Price = 0
		}

		if err := streamer.Send(ctx, codec, e); err != nil {
			log.Error().Err(err).Msg("unable to send order")
			os.Exit(1)
		}
		fmt.Printf("-> Sent %s %s Order: %d @ %d\n", e.Side, e.Type, e.Quantity, e.Price)

	default:
		log.Fatal().Msgf("Unknown action: %s", *action)
	}
}
