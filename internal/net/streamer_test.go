package net

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"

	. "ordergen/internal/common"
	"ordergen/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSink accepts a single connection and returns everything it receives.
func startSink(t *testing.T) (*Streamer, <-chan []byte) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	received := make(chan []byte, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	host, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return NewStreamer(host, p), received
}

func TestReplay(t *testing.T) {
	streamer, received := startSink(t)
	c := mustCodec(t, config.LayoutFixedLE)

	var stream bytes.Buffer
	w := NewRecordWriter(&stream, c)
	for i := 0; i < 1000; i++ {
		require.NoError(t, w.Write(OrderEvent{Type: LimitOrder, AccountID: 1, Price: uint64(i + 1), Quantity: 1, OrderID: uint64(i + 1)}))
	}
	require.NoError(t, w.Flush())
	sent := bytes.Clone(stream.Bytes())

	report, err := streamer.WithChunkSize(100).Replay(context.Background(), &stream, c.Size())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), report.Records)
	assert.Equal(t, uint64(len(sent)), report.Bytes)

	assert.Equal(t, sent, <-received, "bytes must arrive in emission order")
}

func TestReplay_ShortRecord(t *testing.T) {
	streamer, received := startSink(t)

	report, err := streamer.Replay(context.Background(), bytes.NewReader(make([]byte, FixedRecordLen+3)), FixedRecordLen)
	assert.ErrorIs(t, err, ErrShortRecord)
	assert.Equal(t, uint64(1), report.Records)
	assert.Len(t, <-received, FixedRecordLen+3)
}

func TestReplay_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	_, err = NewStreamer("127.0.0.1", port).Replay(context.Background(), bytes.NewReader(nil), FixedRecordLen)
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	streamer, received := startSink(t)
	c := mustCodec(t, config.LayoutFramedBE)
	e := OrderEvent{Side: Buy, Type: LimitOrder, Price: 100, Quantity: 42, AccountID: 1}

	require.NoError(t, streamer.Send(context.Background(), c, e))

	data := <-received
	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}
