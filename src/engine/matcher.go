package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// crosses reports whether the taker's limit accepts the resting order's
// price: an incoming BUY lifts asks at or below its limit, an incoming
// SELL hits bids at or above it.
func crosses(taker, resting *Order) bool {
	if taker.Side == SideBuy {
		return resting.Price.LessThanOrEqual(taker.Price)
	}
	return resting.Price.GreaterThanOrEqual(taker.Price)
}

// matchLimit walks the opposite side of the book in price-time priority,
// filling the taker against each acceptable resting order at the resting
// order's price (maker price). Fully filled resting orders come off the
// book immediately, so the book can never stay crossed past this call.
//
// Returned makers are post-fill value copies of every resting order
// touched, for downstream journaling. Caller holds the market lock.
func matchLimit(book *Book, taker *Order) (trades []Trade, makers []Order) {
	for taker.Remaining().IsPositive() {
		resting := book.PeekBest(taker.Side.Opposite())
		if resting == nil || !crosses(taker, resting) {
			break
		}

		fillQty := decimal.Min(taker.Remaining(), resting.Remaining())
		trade := Trade{
			ID:        uuid.New().String(),
			Symbol:    taker.Symbol,
			Price:     resting.Price,
			Quantity:  fillQty,
			Timestamp: time.Now().UnixMilli(),
		}
		if taker.Side == SideBuy {
			trade.BuyOrderID = taker.ID
			trade.BuyerID = taker.UserID
			trade.SellOrderID = resting.ID
			trade.SellerID = resting.UserID
		} else {
			trade.BuyOrderID = resting.ID
			trade.BuyerID = resting.UserID
			trade.SellOrderID = taker.ID
			trade.SellerID = taker.UserID
		}

		taker.fill(fillQty)
		resting.fill(fillQty)
		trades = append(trades, trade)

		if resting.Status == StatusFilled {
			book.Remove(resting.ID)
		}
		makers = append(makers, *resting)
	}
	return trades, makers
}
