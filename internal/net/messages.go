package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	. "ordergen/internal/common"
	"ordergen/internal/config"
)

var (
	ErrFieldOverflow    = errors.New("field value overflows its wire width")
	ErrUnsupportedEvent = errors.New("event type cannot be expressed in this layout")
	ErrMessageTooShort  = errors.New("message too short")
	ErrInvalidLength    = errors.New("invalid length prefix")
	ErrInvalidSide      = errors.New("invalid side")
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrInvalidPadding   = errors.New("non-zero padding")
)

// Message format constants
const (
	// side, type, 2 padding bytes, account id, price, quantity, order id.
	FixedRecordLen = 1 + 1 + 2 + 4 + 8 + 8 + 8

	FramedPrefixLen = 4
	// side, price, quantity, account id.
	FramedPayloadLen = 1 + 8 + 8 + 8
	FramedMessageLen = FramedPrefixLen + FramedPayloadLen
)

// Codec maps order events to and from one wire layout.
type Codec interface {
	Layout() config.Layout
	// Size is the encoded length of every record in this layout.
	Size() int
	// Append encodes e onto the end of buf. On error buf is returned
	// unchanged.
	Append(buf []byte, e OrderEvent) ([]byte, error)
	// Decode parses exactly one record from the front of msg.
	Decode(msg []byte) (OrderEvent, error)
}

// NewCodec returns the codec of a layout.
func NewCodec(layout config.Layout) (Codec, error) {
	switch layout {
	case config.LayoutFixedLE:
		return FixedLE{}, nil
	case config.LayoutFramedBE:
		return FramedBE{}, nil
	}
	return nil, fmt.Errorf("%w: %d", config.ErrUnknownLayout, layout)
}

// Encode is a convenience wrapper returning a freshly allocated record.
func Encode(c Codec, e OrderEvent) ([]byte, error) {
	return c.Append(make([]byte, 0, c.Size()), e)
}

// FixedLE is the canonical 32-byte little-endian record. It has no length
// prefix; the record size is the frame.
type FixedLE struct{}

func (FixedLE) Layout() config.Layout { return config.LayoutFixedLE }
func (FixedLE) Size() int             { return FixedRecordLen }

func (FixedLE) Append(buf []byte, e OrderEvent) ([]byte, error) {
	if e.Side > Sell {
		return buf, ErrInvalidSide
	}
	if e.Type > CancelOrder {
		return buf, ErrInvalidOrderType
	}
	if e.AccountID > math.MaxUint32 {
		return buf, fmt.Errorf("%w: account id %d needs more than 4 bytes", ErrFieldOverflow, e.AccountID)
	}

	var rec [FixedRecordLen]byte
	rec[0] = byte(e.Side)
	rec[1] = byte(e.Type)
	// rec[2:4] is padding and stays zero.
	binary.LittleEndian.PutUint32(rec[4:8], uint32(e.AccountID))
	binary.LittleEndian.PutUint64(rec[8:16], e.Price)
	binary.LittleEndian.PutUint64(rec[16:24], e.Quantity)
	binary.LittleEndian.PutUint64(rec[24:32], e.OrderID)
	return append(buf, rec[:]...), nil
}

func (FixedLE) Decode(msg []byte) (OrderEvent, error) {
	if len(msg) < FixedRecordLen {
		return OrderEvent{}, ErrMessageTooShort
	}

	e := OrderEvent{
		Side:      Side(msg[0]),
		Type:      OrderType(msg[1]),
		AccountID: uint64(binary.LittleEndian.Uint32(msg[4:8])),
		Price:     binary.LittleEndian.Uint64(msg[8:16]),
		Quantity:  binary.LittleEndian.Uint64(msg[16:24]),
		OrderID:   binary.LittleEndian.Uint64(msg[24:32]),
	}
	if e.Side > Sell {
		return OrderEvent{}, ErrInvalidSide
	}
	if e.Type > CancelOrder {
		return OrderEvent{}, ErrInvalidOrderType
	}
	if msg[2] != 0 || msg[3] != 0 {
		return OrderEvent{}, ErrInvalidPadding
	}
	return e, nil
}

// FramedBE is the legacy message: a 4-byte big-endian length prefix
// followed by side, price, quantity and account id, all big-endian.
//
// It carries neither the event type nor the order id, so cancels are
// rejected and decoded events have a zero OrderID. A decoded event is a
// limit order when it has a price and a market order otherwise.
type FramedBE struct{}

func (FramedBE) Layout() config.Layout { return config.LayoutFramedBE }
func (FramedBE) Size() int             { return FramedMessageLen }

func (FramedBE) Append(buf []byte, e OrderEvent) ([]byte, error) {
	if e.Side > Sell {
		return buf, ErrInvalidSide
	}
	switch e.Type {
	case LimitOrder, MarketOrder:
	case CancelOrder:
		return buf, fmt.Errorf("%w: %v", ErrUnsupportedEvent, e.Type)
	default:
		return buf, ErrInvalidOrderType
	}

	var msg [FramedMessageLen]byte
	binary.BigEndian.PutUint32(msg[0:4], FramedPayloadLen)
	msg[4] = byte(e.Side)
	binary.BigEndian.PutUint64(msg[5:13], e.Price)
	binary.BigEndian.PutUint64(msg[13:21], e.Quantity)
	binary.BigEndian.PutUint64(msg[21:29], e.AccountID)
	return append(buf, msg[:]...), nil
}

func (FramedBE) Decode(msg []byte) (OrderEvent, error) {
	if len(msg) < FramedMessageLen {
		return OrderEvent{}, ErrMessageTooShort
	}
	if n := binary.BigEndian.Uint32(msg[0:4]); n != FramedPayloadLen {
		return OrderEvent{}, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}

	payload := msg[FramedPrefixLen:]
	e := OrderEvent{
		Side:      Side(payload[0]),
		Type:      LimitOrder,
		Price:     binary.BigEndian.Uint64(payload[1:9]),
		Quantity:  binary.BigEndian.Uint64(payload[9:17]),
		AccountID: binary.BigEndian.Uint64(payload[17:25]),
	}
	if e.Side > Sell {
		return OrderEvent{}, ErrInvalidSide
	}
	if e.Price == 0 {
		e.Type = MarketOrder
	}
	return e, nil
}
