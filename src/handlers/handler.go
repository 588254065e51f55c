package handlers

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"mini-exchange/src/config"
	"mini-exchange/src/engine"
	"mini-exchange/src/feed"
	"mini-exchange/src/models"
	"mini-exchange/src/store"
)

const maxLatencySamples = 10000

type Handler struct {
	Exchange *engine.Exchange
	Feed     *feed.Poller
	Store    *store.Store
	Cfg      *config.Config

	StartTime       time.Time
	OrdersReceived  int64
	OrdersMatched   int64
	OrdersCancelled int64
	TradesExecuted  int64

	latencies   []time.Duration
	latenciesMu sync.RWMutex
}

func New(ex *engine.Exchange, fd *feed.Poller, st *store.Store, cfg *config.Config) *Handler {
	return &Handler{
		Exchange:  ex,
		Feed:      fd,
		Store:     st,
		Cfg:       cfg,
		StartTime: time.Now(),
		latencies: make([]time.Duration, 0, maxLatencySamples),
	}
}

// statusForError maps the engine's error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var (
		validation   *engine.ValidationError
		unknown      *engine.UnknownSymbolError
		notFound     *engine.NotFoundError
		unauthorized *engine.AuthorizationError
		insufficient *engine.InsufficientFundsError
	)
	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest
	case errors.As(err, &unknown):
		return fiber.StatusNotFound
	case errors.As(err, &notFound):
		return fiber.StatusNotFound
	case errors.As(err, &unauthorized):
		return fiber.StatusForbidden
	case errors.As(err, &insufficient):
		return fiber.StatusPaymentRequired
	default:
		return fiber.StatusInternalServerError
	}
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, &engine.ValidationError{Reason: field + " is required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &engine.ValidationError{Reason: field + " is not a valid decimal"}
	}
	return d, nil
}

func (h *Handler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	price, err := parseDecimal("price", req.Price)
	if err != nil {
		return h.rejectOrder(c, &req, err)
	}
	qty, err := parseDecimal("qty", req.Qty)
	if err != nil {
		return h.rejectOrder(c, &req, err)
	}

	atomic.AddInt64(&h.OrdersReceived, 1)
	start := time.Now()
	order, trades, snap, err := h.Exchange.SubmitOrder(
		req.UserID, req.Symbol, engine.Side(req.Side), price, qty)
	h.recordLatency(time.Since(start))
	if err != nil {
		return h.rejectOrder(c, &req, err)
	}

	if len(trades) > 0 {
		atomic.AddInt64(&h.OrdersMatched, 1)
		atomic.AddInt64(&h.TradesExecuted, int64(len(trades)))
	}

	log.Info().
		Str("order_id", order.ID).
		Str("user_id", order.UserID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("price", order.Price.String()).
		Str("qty", order.Quantity.String()).
		Str("status", string(order.Status)).
		Int("trades_count", len(trades)).
		Msg("Order processed")

	tradeInfos := make([]models.TradeInfo, 0, len(trades))
	for _, t := range trades {
		tradeInfos = append(tradeInfos, models.NewTradeInfo(t))
	}
	status := fiber.StatusCreated
	if len(trades) > 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(models.SubmitOrderResponse{
		Order:    models.NewOrderInfo(order),
		Trades:   tradeInfos,
		Snapshot: snap,
	})
}

func (h *Handler) rejectOrder(c *fiber.Ctx, req *models.SubmitOrderRequest, err error) error {
	log.Warn().
		Err(err).
		Str("user_id", req.UserID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Str("ip", c.IP()).
		Msg("Order rejected")
	return c.Status(statusForError(err)).JSON(models.ErrorResponse{Error: err.Error()})
}

func (h *Handler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	userID := c.Query("user_id")

	order, err := h.Exchange.CancelOrder(userID, orderID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("order_id", orderID).
			Str("user_id", userID).
			Str("ip", c.IP()).
			Msg("Cancel rejected")
		return c.Status(statusForError(err)).JSON(models.ErrorResponse{Error: err.Error()})
	}

	atomic.AddInt64(&h.OrdersCancelled, 1)
	log.Info().
		Str("order_id", orderID).
		Str("user_id", userID).
		Str("symbol", order.Symbol).
		Msg("Order cancelled")

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		Order: models.NewOrderInfo(order),
	})
}

func (h *Handler) OpenOrders(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "user_id query parameter is required",
		})
	}

	orders := h.Exchange.OpenOrders(userID)
	infos := make([]models.OrderInfo, 0, len(orders))
	for _, o := range orders {
		infos = append(infos, models.NewOrderInfo(o))
	}
	return c.Status(fiber.StatusOK).JSON(models.OpenOrdersResponse{Orders: infos})
}

func (h *Handler) GetOrderBook(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	depth := h.Cfg.Market.SnapshotDepth
	if raw := c.Query("depth"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			depth = parsed
		}
	}
	// edge case: clamp requested depth
	if depth > h.Cfg.Market.MaxDepth {
		depth = h.Cfg.Market.MaxDepth
	}

	snap, err := h.Exchange.Snapshot(symbol, depth)
	if err != nil {
		return c.Status(statusForError(err)).JSON(models.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}

func (h *Handler) GetReference(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	resp := models.ReferenceResponse{Symbol: symbol}
	if h.Feed != nil {
		if price, ok := h.Feed.Last(symbol); ok {
			s := price.String()
			resp.Price = &s
		}
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *Handler) GetTrades(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := h.Store.RecentTrades(symbol, limit)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("Trade history query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	trades := make([]models.TradeInfo, 0, len(rows))
	for _, row := range rows {
		trades = append(trades, models.TradeInfo{
			TradeID:     row.TradeID,
			Symbol:      row.Symbol,
			Price:       row.Price.String(),
			Quantity:    row.Quantity.String(),
			BuyOrderID:  row.BuyOrderID,
			SellOrderID: row.SellOrderID,
			Timestamp:   row.ExecutedAt.UnixMilli(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(models.TradesResponse{Symbol: symbol, Trades: trades})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		RestingOrders: int64(h.Exchange.RestingCount()),
	})
}

func (h *Handler) Metrics(c *fiber.Ctx) error {
	p50, p99 := h.latencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersMatched:          atomic.LoadInt64(&h.OrdersMatched),
		OrdersCancelled:        atomic.LoadInt64(&h.OrdersCancelled),
		OrdersInBook:           int64(h.Exchange.RestingCount()),
		TradesExecuted:         atomic.LoadInt64(&h.TradesExecuted),
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		ThroughputOrdersPerSec: h.throughput(),
	})
}

func (h *Handler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)
	// edge case: keep a rolling window of the newest samples
	if len(h.latencies) > maxLatencySamples {
		h.latencies = h.latencies[len(h.latencies)-maxLatencySamples:]
	}
}

func (h *Handler) latencyPercentiles() (p50, p99 float64) {
	h.latenciesMu.RLock()
	samples := make([]time.Duration, len(h.latencies))
	copy(samples, h.latencies)
	h.latenciesMu.RUnlock()

	if len(samples) == 0 {
		return 0, 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	at := func(q float64) float64 {
		idx := int(float64(len(samples)) * q)
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		return float64(samples[idx].Nanoseconds()) / 1e6
	}
	return at(0.50), at(0.99)
}

func (h *Handler) throughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}
