package net

import (
	"bufio"
	"errors"
	"io"

	. "ordergen/internal/common"
)

const defaultBufferSize = 64 * 1024

// RecordWriter encodes events onto a byte sink in emission order.
type RecordWriter struct {
	codec   Codec
	w       *bufio.Writer
	scratch []byte
	records uint64
}

func NewRecordWriter(w io.Writer, codec Codec) *RecordWriter {
	return &RecordWriter{
		codec:   codec,
		w:       bufio.NewWriterSize(w, defaultBufferSize),
		scratch: make([]byte, 0, codec.Size()),
	}
}

// Write encodes and buffers one event. A rejected event writes nothing.
func (rw *RecordWriter) Write(e OrderEvent) error {
	buf, err := rw.codec.Append(rw.scratch[:0], e)
	if err != nil {
		return err
	}
	if _, err := rw.w.Write(buf); err != nil {
		return err
	}
	rw.records++
	return nil
}

// Records is the number of events written so far.
func (rw *RecordWriter) Records() uint64 {
	return rw.records
}

func (rw *RecordWriter) Flush() error {
	return rw.w.Flush()
}

// RecordReader decodes a stream produced by a RecordWriter.
type RecordReader struct {
	codec Codec
	r     *bufio.Reader
	buf   []byte
}

func NewRecordReader(r io.Reader, codec Codec) *RecordReader {
	return &RecordReader{
		codec: codec,
		r:     bufio.NewReaderSize(r, defaultBufferSize),
		buf:   make([]byte, codec.Size()),
	}
}

// Next returns the next event. It returns io.EOF at a clean end of stream
// and io.ErrUnexpectedEOF when the stream ends inside a record.
func (rr *RecordReader) Next() (OrderEvent, error) {
	if _, err := io.ReadFull(rr.r, rr.buf); err != nil {
		return OrderEvent{}, err
	}
	return rr.codec.Decode(rr.buf)
}

// ReadAll decodes every remaining event.
func (rr *RecordReader) ReadAll() ([]OrderEvent, error) {
	var events []OrderEvent
	for {
		e, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}
