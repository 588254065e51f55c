package ws

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"mini-exchange/src/engine"
)

// BookSource supplies the initial snapshot for a fresh subscription.
type BookSource interface {
	Snapshot(symbol string, depth int) (engine.Snapshot, error)
}

// PriceSource supplies the advisory reference price attached to the
// initial message.
type PriceSource interface {
	Last(symbol string) (decimal.Decimal, bool)
}

// Upgrade gates the /ws routes to actual WebSocket upgrade requests.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// BookHandler serves /ws/book/:symbol: it sends one initial snapshot and
// then streams every broadcast for the symbol until the client goes away.
func (h *Hub) BookHandler(books BookSource, prices PriceSource, depth int) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		symbol := c.Params("symbol")

		snap, err := books.Snapshot(symbol, depth)
		if err != nil {
			h.log.Warn().Err(err).Str("symbol", symbol).Msg("WebSocket subscription rejected")
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"unknown symbol"}`))
			return
		}

		sub := h.subscribe(symbol)
		defer h.unsubscribe(symbol, sub)

		initial := bookMessage{Type: "snapshot", Symbol: symbol, Book: snap}
		if prices != nil {
			if ref, ok := prices.Last(symbol); ok {
				initial.RefPrice = &ref
			}
		}
		payload, err := json.Marshal(initial)
		if err != nil {
			return
		}
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}

		h.log.Info().Str("symbol", symbol).Msg("WebSocket subscriber connected")

		// reader goroutine only watches for the client closing; inbound
		// payloads are ignored
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case msg, ok := <-sub.ch:
				if !ok {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	})
}
