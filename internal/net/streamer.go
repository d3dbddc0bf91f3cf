package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	. "ordergen/internal/common"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultChunkSize   = 4 * 1024
	defaultDialTimeout = 5 * time.Second
)

var ErrShortRecord = errors.New("stream ended inside a record")

// ReplayReport summarises one replay.
type ReplayReport struct {
	Bytes   uint64
	Records uint64
	Elapsed time.Duration
}

// Rate returns records per second.
func (r ReplayReport) Rate() float64 {
	seconds := r.Elapsed.Seconds()
	if seconds == 0 {
		return 0
	}
	return float64(r.Records) / seconds
}

// Streamer pushes a pre-generated record stream to a TCP endpoint in fixed
// size chunks, preserving byte order.
type Streamer struct {
	address string
	port    int
	chunk   int
	timeout time.Duration
}

func NewStreamer(address string, port int) *Streamer {
	return &Streamer{
		address: address,
		port:    port,
		chunk:   defaultChunkSize,
		timeout: defaultDialTimeout,
	}
}

// WithChunkSize overrides the write size. Non-positive values are ignored.
func (s *Streamer) WithChunkSize(n int) *Streamer {
	if n > 0 {
		s.chunk = n
	}
	return s
}

func (s *Streamer) addr() string {
	return net.JoinHostPort(s.address, fmt.Sprint(s.port))
}

func (s *Streamer) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", s.addr(), err)
	}
	return conn, nil
}

// Replay copies src to the endpoint until EOF or until ctx is cancelled.
// recordSize is only used to count records for the report; a trailing
// partial record is reported as ErrShortRecord after it has been sent.
func (s *Streamer) Replay(ctx context.Context, src io.Reader, recordSize int) (ReplayReport, error) {
	var report ReplayReport

	conn, err := s.dial(ctx)
	if err != nil {
		return report, err
	}

	t, _ := tomb.WithContext(ctx)

	// Closing the connection unblocks a pending write once the tomb dies.
	t.Go(func() error {
		<-t.Dying()
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Str("address", s.addr()).Msg("unable to close connection")
		}
		return nil
	})

	t.Go(func() error {
		err := s.send(t, conn, src, &report)
		t.Kill(err)
		return err
	})

	err = t.Wait()
	if err == nil && recordSize > 0 {
		report.Records = report.Bytes / uint64(recordSize)
		if report.Bytes%uint64(recordSize) != 0 {
			err = ErrShortRecord
		}
	}

	log.Info().
		Str("address", s.addr()).
		Uint64("bytes", report.Bytes).
		Uint64("records", report.Records).
		Dur("elapsed", report.Elapsed).
		Float64("records_per_sec", report.Rate()).
		Msg("replay finished")
	return report, err
}

func (s *Streamer) send(t *tomb.Tomb, conn net.Conn, src io.Reader, report *ReplayReport) error {
	buf := make([]byte, s.chunk)
	start := time.Now()
	defer func() {
		report.Elapsed = time.Since(start)
	}()

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				return fmt.Errorf("unable to write to %s: %w", s.addr(), werr)
			}
			report.Bytes += uint64(n)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("unable to read records: %w", err)
		}
	}
}

// Send encodes a single event and writes it on a fresh connection.
func (s *Streamer) Send(ctx context.Context, codec Codec, e OrderEvent) error {
	msg, err := Encode(codec, e)
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Str("address", s.addr()).Msg("unable to close connection")
		}
	}()

	if _, err := conn.Write(msg); err != nil {
		return fmt.Errorf("unable to send order: %w", err)
	}
	return nil
}
