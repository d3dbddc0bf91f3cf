package common

import (
	"fmt"
)

// OrderEvent is one emitted unit of the synthetic stream.
//
// Price is zero for market orders and cancels. Quantity is zero only for
// cancels. For a cancel, Side and AccountID carry no meaning and are zeroed.
type OrderEvent struct {
	Side      Side      // Order side
	Type      OrderType //
	AccountID uint64    // Owning account, 1..ACCOUNT_ID_MAX
	Price     uint64    // Limit price in ticks
	Quantity  uint64    // Requested quantity
	OrderID   uint64    // Fresh id for limit/market, target id for cancel
}

// Resting reports whether the event leaves an order on the receiving book.
func (e OrderEvent) Resting() bool {
	return e.Type == LimitOrder
}

func (e OrderEvent) String() string {
	return fmt.Sprintf(
		`OrderID:   %d
Type:      %v
Side:      %v
AccountID: %d
Price:     %d
Quantity:  %d`,
		e.OrderID,
		e.Type,
		e.Side,
		e.AccountID,
		e.Price,
		e.Quantity,
	)
}
