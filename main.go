package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"mini-exchange/src/config"
	"mini-exchange/src/engine"
	"mini-exchange/src/feed"
	"mini-exchange/src/handlers"
	"mini-exchange/src/logger"
	"mini-exchange/src/middleware"
	"mini-exchange/src/routes"
	"mini-exchange/src/store"
	"mini-exchange/src/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info", "")
		lg := logger.Get()
		lg.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.File)
	log := logger.Get()
	log.Info().Strs("symbols", cfg.Market.Symbols).Msg("Initializing mini exchange")

	st, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open store")
	}
	st.SetDefaultBalance(cfg.Market.DefaultBalance)

	var provider feed.Provider
	if cfg.Feed.Provider == "finnhub" {
		provider = feed.NewFinnhub(cfg.Feed.FinnhubKey)
	}
	poller := feed.NewPoller(provider, cfg.Market.Symbols,
		time.Duration(cfg.Feed.IntervalSec)*time.Second, log)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	go poller.Run(feedCtx)

	hub := ws.NewHub(log)

	opts := []engine.Option{
		engine.WithJournal(st),
		engine.WithBroadcaster(hub),
		engine.WithSnapshotDepth(cfg.Market.SnapshotDepth),
	}
	if cfg.Market.AffordabilityCheck {
		opts = append(opts, engine.WithFunds(st))
	}
	exchange := engine.New(cfg.Market.Symbols, opts...)

	h := handlers.New(exchange, poller, st, cfg)
	avail := middleware.NewAvailability(cfg.Server.MaxInFlight)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())
	routes.Setup(app, h, hub, avail, cfg)

	serverError := make(chan error, 1)
	go func() {
		if err := app.Listen(cfg.Server.Addr); err != nil {
			serverError <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverError:
		log.Fatal().Err(err).Str("addr", cfg.Server.Addr).Msg("Server failed")
	case <-quit:
		log.Info().Msg("Received shutdown signal, shutting down...")
	}

	avail.Drain()
	stopFeed()

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: a drain that exceeds the timeout is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Dur("timeout", shutdownTimeout).Msg("Shutdown timeout exceeded")
		} else {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}

	st.Close()
	log.Info().Msg("Shutdown complete")
	logger.Close()
}
