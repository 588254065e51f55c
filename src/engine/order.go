package engine

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderStatus string

const (
	// StatusOpen covers partially filled orders too: an order stays OPEN
	// while 0 <= filled < qty and only transitions on full fill or cancel.
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Order is a resting or incoming limit order. Price and quantities are
// exact decimals; binary floating point would break price-level aggregation
// and the equality comparisons the book depends on.
//
// Orders are only mutated while the owning market's lock is held, so the
// fields need no internal synchronization.
type Order struct {
	ID        string
	UserID    string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Filled    decimal.Decimal
	Status    OrderStatus
	Seq       uint64 // arrival sequence, breaks price ties first-in-first-matched
	Timestamp int64  // unix milliseconds
}

func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

func (o *Order) IsTerminal() bool {
	return o.Status == StatusFilled || o.Status == StatusCancelled
}

// fill applies an execution of qty against this order and promotes it to
// FILLED once nothing remains. Caller holds the market lock.
func (o *Order) fill(qty decimal.Decimal) {
	o.Filled = o.Filled.Add(qty)
	if o.Filled.GreaterThanOrEqual(o.Quantity) {
		o.Status = StatusFilled
	}
}

// Trade is one match event. Execution price is always the resting order's
// limit price (maker price); trades are immutable once created.
type Trade struct {
	ID          string
	Symbol      string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	Timestamp   int64
}
