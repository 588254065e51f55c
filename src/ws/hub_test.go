package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mini-exchange/src/engine"
)

func testSnapshot(symbol string) engine.Snapshot {
	return engine.Snapshot{
		Symbol: symbol,
		Bids: []engine.Level{{
			Price:    decimal.RequireFromString("100.00"),
			Quantity: decimal.RequireFromString("10"),
		}},
		Asks:      []engine.Level{},
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	sub := hub.subscribe("AAPL")
	defer hub.unsubscribe("AAPL", sub)

	hub.Broadcast("AAPL", testSnapshot("AAPL"))

	select {
	case payload := <-sub.ch:
		var msg struct {
			Type   string `json:"type"`
			Symbol string `json:"symbol"`
			Book   struct {
				Bids []struct {
					Price string `json:"price"`
				} `json:"bids"`
			} `json:"book"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if msg.Type != "snapshot" || msg.Symbol != "AAPL" {
			t.Errorf("unexpected envelope %s/%s", msg.Type, msg.Symbol)
		}
		// price must arrive as a decimal string, never a float
		if len(msg.Book.Bids) != 1 || msg.Book.Bids[0].Price != "100" {
			t.Errorf("expected string price level, got %+v", msg.Book.Bids)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the subscriber")
	}
}

func TestBroadcastIsScopedToSymbol(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	aapl := hub.subscribe("AAPL")
	msft := hub.subscribe("MSFT")
	defer hub.unsubscribe("AAPL", aapl)
	defer hub.unsubscribe("MSFT", msft)

	hub.Broadcast("AAPL", testSnapshot("AAPL"))

	select {
	case <-aapl.ch:
	case <-time.After(time.Second):
		t.Fatal("AAPL subscriber missed its broadcast")
	}
	select {
	case <-msft.ch:
		t.Fatal("MSFT subscriber received another symbol's broadcast")
	default:
	}
}

func TestBroadcastDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	sub := hub.subscribe("AAPL")
	defer hub.unsubscribe("AAPL", sub)

	// never read: the buffer fills and further broadcasts must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Broadcast("AAPL", testSnapshot("AAPL"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	if len(sub.ch) != subscriberBuffer {
		t.Errorf("expected a full buffer of %d, got %d", subscriberBuffer, len(sub.ch))
	}
}

func TestUnsubscribeCleansUp(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	sub := hub.subscribe("AAPL")
	if got := hub.SubscriberCount("AAPL"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	hub.unsubscribe("AAPL", sub)
	if got := hub.SubscriberCount("AAPL"); got != 0 {
		t.Errorf("expected 0 subscribers, got %d", got)
	}
	if _, open := <-sub.ch; open {
		t.Error("expected the subscriber channel to be closed")
	}

	// broadcasting to a symbol with no subscribers is a no-op
	hub.Broadcast("AAPL", testSnapshot("AAPL"))
}
