package models

import (
	"mini-exchange/src/engine"
)

type SubmitOrderRequest struct {
	UserID string `json:"user_id"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Price  string `json:"price"` // decimal as string, never a binary float
	Qty    string `json:"qty"`   // decimal as string
}

type OrderInfo struct {
	OrderID        string `json:"order_id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Price          string `json:"price"`
	Quantity       string `json:"qty"`
	FilledQuantity string `json:"filled_qty"`
	Status         string `json:"status"`
	Timestamp      int64  `json:"ts"`
}

func NewOrderInfo(o engine.Order) OrderInfo {
	return OrderInfo{
		OrderID:        o.ID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Price:          o.Price.String(),
		Quantity:       o.Quantity.String(),
		FilledQuantity: o.Filled.String(),
		Status:         string(o.Status),
		Timestamp:      o.Timestamp,
	}
}

type TradeInfo struct {
	TradeID     string `json:"trade_id"`
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	Quantity    string `json:"qty"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Timestamp   int64  `json:"ts"`
}

func NewTradeInfo(t engine.Trade) TradeInfo {
	return TradeInfo{
		TradeID:     t.ID,
		Symbol:      t.Symbol,
		Price:       t.Price.String(),
		Quantity:    t.Quantity.String(),
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Timestamp:   t.Timestamp,
	}
}

type SubmitOrderResponse struct {
	Order    OrderInfo       `json:"order"`
	Trades   []TradeInfo     `json:"trades"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

type CancelOrderResponse struct {
	Order OrderInfo `json:"order"`
}

type OpenOrdersResponse struct {
	Orders []OrderInfo `json:"orders"`
}

type TradesResponse struct {
	Symbol string      `json:"symbol"`
	Trades []TradeInfo `json:"trades"`
}

type ReferenceResponse struct {
	Symbol string  `json:"symbol"`
	Price  *string `json:"price"` // null until the poller has seen one
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RestingOrders int64  `json:"resting_orders"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersMatched          int64   `json:"orders_matched"`
	OrdersCancelled        int64   `json:"orders_cancelled"`
	OrdersInBook           int64   `json:"orders_in_book"`
	TradesExecuted         int64   `json:"trades_executed"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
