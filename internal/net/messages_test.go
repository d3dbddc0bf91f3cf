package net

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	. "ordergen/internal/common"
	"ordergen/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

var testEvents = []OrderEvent{
	{Side: Sell, Type: LimitOrder, AccountID: 96640, Price: 99550, Quantity: 8, OrderID: 1},
	{Side: Buy, Type: MarketOrder, AccountID: 50166, Quantity: 45, OrderID: 3},
	{Side: Buy, Type: CancelOrder, OrderID: 2},
	{Side: Sell, Type: LimitOrder, AccountID: math.MaxUint32, Price: math.MaxUint64, Quantity: math.MaxUint64, OrderID: math.MaxUint64},
}

func mustCodec(t *testing.T, layout config.Layout) Codec {
	t.Helper()
	c, err := NewCodec(layout)
	require.NoError(t, err)
	return c
}

// --- Tests ------------------------------------------------------------------

func TestFixedLE_Layout(t *testing.T) {
	c := mustCodec(t, config.LayoutFixedLE)
	msg, err := Encode(c, OrderEvent{
		Side:      Sell,
		Type:      CancelOrder,
		AccountID: 0x01020304,
		Price:     0x1112131415161718,
		Quantity:  0x2122232425262728,
		OrderID:   0x3132333435363738,
	})
	require.NoError(t, err)

	expected := []byte{
		0x01,       // side
		0x02,       // type
		0x00, 0x00, // padding
		0x04, 0x03, 0x02, 0x01,
		0x18, 0x17, 0x16, 0x15, 0x14, 0x13, 0x12, 0x11,
		0x28, 0x27, 0x26, 0x25, 0x24, 0x23, 0x22, 0x21,
		0x38, 0x37, 0x36, 0x35, 0x34, 0x33, 0x32, 0x31,
	}
	assert.Equal(t, expected, msg)
	assert.Len(t, msg, FixedRecordLen)
	assert.Equal(t, 32, c.Size())
}

func TestFramedBE_Layout(t *testing.T) {
	c := mustCodec(t, config.LayoutFramedBE)
	msg, err := Encode(c, OrderEvent{
		Side:      Buy,
		Type:      LimitOrder,
		Price:     100,
		Quantity:  42,
		AccountID: 7,
		OrderID:   99, // not carried
	})
	require.NoError(t, err)

	expected := []byte{
		0x00, 0x00, 0x00, 0x19, // length = 25
		0x00,
		0, 0, 0, 0, 0, 0, 0, 100,
		0, 0, 0, 0, 0, 0, 0, 42,
		0, 0, 0, 0, 0, 0, 0, 7,
	}
	assert.Equal(t, expected, msg)
	assert.Equal(t, 29, c.Size())
}

func TestRoundTrip(t *testing.T) {
	for _, layout := range []config.Layout{config.LayoutFixedLE, config.LayoutFramedBE} {
		c := mustCodec(t, layout)
		for _, e := range testEvents {
			if layout == config.LayoutFramedBE && e.Type == CancelOrder {
				continue
			}
			msg, err := Encode(c, e)
			require.NoError(t, err, "%v %v", layout, e)

			decoded, err := c.Decode(msg)
			require.NoError(t, err)

			again, err := Encode(c, decoded)
			require.NoError(t, err)
			assert.Equal(t, msg, again, "%v must re-encode byte for byte", layout)

			if layout == config.LayoutFixedLE {
				assert.Equal(t, e, decoded)
			} else {
				assert.Equal(t, e.Side, decoded.Side)
				assert.Equal(t, e.Type, decoded.Type)
				assert.Equal(t, e.Price, decoded.Price)
				assert.Equal(t, e.Quantity, decoded.Quantity)
				assert.Equal(t, e.AccountID, decoded.AccountID)
				assert.Zero(t, decoded.OrderID)
			}
		}
	}
}

func TestFixedLE_Overflow(t *testing.T) {
	c := mustCodec(t, config.LayoutFixedLE)
	buf := []byte{0xAA}

	out, err := c.Append(buf, OrderEvent{Type: LimitOrder, AccountID: math.MaxUint32 + 1, Quantity: 1})
	assert.ErrorIs(t, err, ErrFieldOverflow)
	assert.Equal(t, []byte{0xAA}, out, "a rejected record writes nothing")

	// The framed layout has an 8-byte account field.
	_, err = Encode(mustCodec(t, config.LayoutFramedBE), OrderEvent{Type: LimitOrder, AccountID: math.MaxUint32 + 1})
	assert.NoError(t, err)
}

func TestFramedBE_RejectsCancel(t *testing.T) {
	_, err := Encode(mustCodec(t, config.LayoutFramedBE), OrderEvent{Type: CancelOrder, OrderID: 1})
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestInvalidEvents(t *testing.T) {
	for _, layout := range []config.Layout{config.LayoutFixedLE, config.LayoutFramedBE} {
		c := mustCodec(t, layout)
		_, err := Encode(c, OrderEvent{Side: 2})
		assert.ErrorIs(t, err, ErrInvalidSide)
		_, err = Encode(c, OrderEvent{Type: 3})
		assert.ErrorIs(t, err, ErrInvalidOrderType)
	}
}

func TestDecode_Malformed(t *testing.T) {
	fixed := mustCodec(t, config.LayoutFixedLE)
	msg, err := Encode(fixed, testEvents[0])
	require.NoError(t, err)

	_, err = fixed.Decode(msg[:FixedRecordLen-1])
	assert.ErrorIs(t, err, ErrMessageTooShort)

	bad := bytes.Clone(msg)
	bad[2] = 1
	_, err = fixed.Decode(bad)
	assert.ErrorIs(t, err, ErrInvalidPadding)

	bad = bytes.Clone(msg)
	bad[1] = 9
	_, err = fixed.Decode(bad)
	assert.ErrorIs(t, err, ErrInvalidOrderType)

	framed := mustCodec(t, config.LayoutFramedBE)
	msg, err = Encode(framed, testEvents[0])
	require.NoError(t, err)

	bad = bytes.Clone(msg)
	binary.BigEndian.PutUint32(bad[0:4], 24)
	_, err = framed.Decode(bad)
	assert.ErrorIs(t, err, ErrInvalidLength)

	bad = bytes.Clone(msg)
	bad[4] = 5
	_, err = framed.Decode(bad)
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, err = framed.Decode(msg[:10])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestNewCodec_Unknown(t *testing.T) {
	_, err := NewCodec(config.Layout(7))
	assert.ErrorIs(t, err, config.ErrUnknownLayout)
}

func TestRecordWriterReader(t *testing.T) {
	c := mustCodec(t, config.LayoutFixedLE)
	var buf bytes.Buffer

	w := NewRecordWriter(&buf, c)
	for _, e := range testEvents {
		require.NoError(t, w.Write(e))
	}
	assert.ErrorIs(t, w.Write(OrderEvent{AccountID: math.MaxUint32 + 1}), ErrFieldOverflow)
	require.NoError(t, w.Flush())
	assert.Equal(t, uint64(len(testEvents)), w.Records())
	assert.Equal(t, len(testEvents)*FixedRecordLen, buf.Len())

	events, err := NewRecordReader(bytes.NewReader(buf.Bytes()), c).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, testEvents, events)
}

func TestRecordReader_Truncated(t *testing.T) {
	c := mustCodec(t, config.LayoutFixedLE)
	msg, err := Encode(c, testEvents[0])
	require.NoError(t, err)

	r := NewRecordReader(bytes.NewReader(append(msg, msg[:5]...)), c)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	r = NewRecordReader(bytes.NewReader(nil), c)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
