package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mini-exchange/src/engine"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestAvailableSeedsDefaultBalance(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	balance, err := s.Available("alice")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if !balance.Equal(d("10000")) {
		t.Errorf("expected seeded balance 10000, got %s", balance)
	}

	// repeat lookups see the same row, not a fresh seed
	s.SetDefaultBalance(d("5"))
	balance, _ = s.Available("alice")
	if !balance.Equal(d("10000")) {
		t.Errorf("expected existing balance 10000, got %s", balance)
	}

	balance, _ = s.Available("bob")
	if !balance.Equal(d("5")) {
		t.Errorf("expected new default 5 for bob, got %s", balance)
	}
}

func TestUpdateOrderPersists(t *testing.T) {
	s := openTestStore(t)

	order := engine.Order{
		ID:       "o-1",
		UserID:   "alice",
		Symbol:   "AAPL",
		Side:     engine.SideBuy,
		Price:    d("100.50"),
		Quantity: d("10"),
		Filled:   d("4"),
		Status:   engine.StatusOpen,
	}
	s.UpdateOrder(order)

	order.Filled = d("10")
	order.Status = engine.StatusFilled
	s.UpdateOrder(order)
	s.Close() // drains the queue

	rows, err := s.OrdersForUser("alice", 10)
	if err != nil {
		t.Fatalf("orders query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 upserted row, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != "FILLED" || !row.Filled.Equal(d("10")) {
		t.Errorf("expected FILLED filled=10, got %s filled=%s", row.Status, row.Filled)
	}
	if !row.Price.Equal(d("100.50")) {
		t.Errorf("expected exact decimal price, got %s", row.Price)
	}
}

func TestRecordTradeSettlesBalances(t *testing.T) {
	s := openTestStore(t)

	s.RecordTrade(engine.Trade{
		ID:          "t-1",
		Symbol:      "AAPL",
		Price:       d("100"),
		Quantity:    d("4"),
		BuyOrderID:  "o-b",
		SellOrderID: "o-s",
		BuyerID:     "alice",
		SellerID:    "bob",
		Timestamp:   time.Now().UnixMilli(),
	})
	s.Close()

	trades, err := s.RecentTrades("AAPL", 10)
	if err != nil {
		t.Fatalf("trades query: %v", err)
	}
	if len(trades) != 1 || trades[0].TradeID != "t-1" {
		t.Fatal("expected the recorded trade")
	}

	buyer, _ := s.Available("alice")
	seller, _ := s.Available("bob")
	if !buyer.Equal(d("9600")) {
		t.Errorf("expected buyer balance 9600, got %s", buyer)
	}
	if !seller.Equal(d("10400")) {
		t.Errorf("expected seller balance 10400, got %s", seller)
	}
}

func TestRecentTradesOrderAndLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		s.RecordTrade(engine.Trade{
			ID:        "t-" + string(rune('a'+i)),
			Symbol:    "AAPL",
			Price:     d("100"),
			Quantity:  d("1"),
			BuyerID:   "alice",
			SellerID:  "bob",
			Timestamp: base.Add(time.Duration(i) * time.Second).UnixMilli(),
		})
	}
	s.Close()

	trades, err := s.RecentTrades("AAPL", 3)
	if err != nil {
		t.Fatalf("trades query: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(trades))
	}
	if trades[0].TradeID != "t-e" {
		t.Errorf("expected newest trade first, got %s", trades[0].TradeID)
	}

	if other, _ := s.RecentTrades("MSFT", 10); len(other) != 0 {
		t.Error("expected no trades for another symbol")
	}
}
