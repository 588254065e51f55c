// Package ws fans book snapshots out to WebSocket subscribers, one
// subscriber set per symbol.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mini-exchange/src/engine"
)

const subscriberBuffer = 16

type subscriber struct {
	ch chan []byte
}

// Hub implements the engine's Broadcaster: broadcast is fire-and-forget
// and a slow subscriber drops messages rather than stalling the matching
// path.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
	log  zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		log:  log,
	}
}

type bookMessage struct {
	Type     string           `json:"type"`
	Symbol   string           `json:"symbol"`
	Book     engine.Snapshot  `json:"book"`
	RefPrice *decimal.Decimal `json:"ref_price,omitempty"`
}

func (h *Hub) subscribe(symbol string) *subscriber {
	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	set, ok := h.subs[symbol]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[symbol] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(symbol string, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[symbol]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, symbol)
		}
	}
	h.mu.Unlock()
	close(sub.ch)
}

// SubscriberCount reports the current subscribers for a symbol.
func (h *Hub) SubscriberCount(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[symbol])
}

// Broadcast sends the snapshot to every subscriber of the symbol. The
// payload is marshalled once and fanned out without blocking.
func (h *Hub) Broadcast(symbol string, snap engine.Snapshot) {
	payload, err := json.Marshal(bookMessage{
		Type:   "snapshot",
		Symbol: symbol,
		Book:   snap,
	})
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Snapshot marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[symbol] {
		select {
		case sub.ch <- payload:
		default:
			// edge case: subscriber is not keeping up, drop this update
		}
	}
}
