package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"mini-exchange/src/config"
	"mini-exchange/src/handlers"
	"mini-exchange/src/middleware"
	"mini-exchange/src/ws"
)

func Setup(app *fiber.App, h *handlers.Handler, hub *ws.Hub, avail *middleware.Availability, cfg *config.Config) {
	app.Use(avail.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !cfg.RateLimit.Disabled {
		window := time.Duration(cfg.RateLimit.WindowSec) * time.Second
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Max, window)
		api.Use(limiter.Middleware())
	}

	api.Post("/orders", h.SubmitOrder)
	api.Delete("/orders/:id", h.CancelOrder)
	api.Get("/orders", h.OpenOrders)
	api.Get("/orderbook/:symbol", h.GetOrderBook)
	api.Get("/reference/:symbol", h.GetReference)
	api.Get("/trades/:symbol", h.GetTrades)

	app.Use("/ws", ws.Upgrade())
	app.Get("/ws/book/:symbol", hub.BookHandler(h.Exchange, h.Feed, cfg.Market.SnapshotDepth))

	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", h.Metrics)
}
