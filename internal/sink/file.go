package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "ordergen/internal/common"
	"ordergen/internal/net"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var ErrUnknownCompression = errors.New("unknown compression")

type Compression int

const (
	None Compression = iota
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	}
	return "unknown"
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

// File writes encoded records to a file, optionally through a compressor.
type File struct {
	*net.RecordWriter

	path string
	file *os.File
	comp io.WriteCloser // nil when uncompressed
}

func Create(path string, codec net.Codec, c Compression) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", path, err)
	}

	out := &File{path: path, file: f}
	var w io.Writer = f
	switch c {
	case None:
	case Zstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("unable to start zstd encoder: %w", err)
		}
		out.comp, w = enc, enc
	case LZ4:
		zw := lz4.NewWriter(f)
		out.comp, w = zw, zw
	default:
		_ = f.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	out.RecordWriter = net.NewRecordWriter(w, codec)
	return out, nil
}

// Emit adapts the file to a generator emitter.
func (f *File) Emit(e OrderEvent) error {
	return f.Write(e)
}

func (f *File) Path() string {
	return f.path
}

// Close flushes buffered records, finishes the compressed stream and closes
// the file.
func (f *File) Close() error {
	var errs []error
	errs = append(errs, f.Flush())
	if f.comp != nil {
		errs = append(errs, f.comp.Close())
	}
	errs = append(errs, f.file.Close())
	return errors.Join(errs...)
}

// OpenRaw opens a record file and undoes its compression, yielding the raw
// record stream.
func OpenRaw(path string, c Compression) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}

	switch c {
	case None:
		return f, nil
	case Zstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("unable to start zstd decoder: %w", err)
		}
		return &readCloser{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	case LZ4:
		return &readCloser{Reader: lz4.NewReader(f), close: f.Close}, nil
	}
	_ = f.Close()
	return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc *readCloser) Close() error {
	return rc.close()
}

// ShardPath derives the output path of one shard. A single-shard run keeps
// the path as given.
func ShardPath(path string, shard uint8, shards int) string {
	if shards <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.shard-%03d%s", strings.TrimSuffix(path, ext), shard, ext)
}
