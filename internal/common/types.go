package common

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

type OrderType uint8

const (
	// Limit orders rest on the receiving book at their price until filled
	// or cancelled. Only limit orders can later be the target of a cancel.
	LimitOrder OrderType = iota
	// Market orders execute immediately against whatever liquidity exists
	// and never rest, so they are never cancellable.
	MarketOrder
	// Cancel removes a previously placed, still resting limit order.
	CancelOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	case CancelOrder:
		return "CANCEL"
	}
	return "UNKNOWN"
}
