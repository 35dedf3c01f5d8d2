package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/api/rest"
	"github.com/fortuna/augur/internal/api/websocket"
	"github.com/fortuna/augur/internal/app"
	"github.com/fortuna/augur/internal/backfill"
	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/logging"
	"github.com/fortuna/augur/internal/publisher"
	"github.com/fortuna/augur/internal/scheduler"
)

const (
	serviceName    = "augur"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting service", zap.String("service", serviceName), zap.String("version", serviceVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The websocket server is a prediction sink, so it exists before the services.
	wsServer := websocket.NewServer(cfg.CORSOrigins, logger)

	a, err := app.Build(ctx, cfg, app.Options{
		RequireRedis:  true,
		RedisAttempts: 30,
		RetryDelay:    2 * time.Second,
		Sinks:         []publisher.Sink{wsServer},
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	// Hot-reload model files as training jobs replace them.
	go func() {
		if err := a.Models.Watch(ctx); err != nil {
			logger.Warn("⚠ model watcher stopped", zap.Error(err))
		}
	}()

	sched := scheduler.NewOrchestrator(cfg, a.Collector, a.Predictions, a.Settlement, &scheduler.Config{
		EnableDaily:       cfg.EnableDaily,
		EnableOddsPolling: cfg.EnableOddsPolling,
		MaxRetries:        3,
		RetryDelay:        30 * time.Second,
	}, logger)
	sched.Start(ctx)
	logger.Info("✓ Scheduler started")

	var backfillHandler *rest.BackfillHandler
	var backfillService *backfill.Service
	if cfg.EnableBackfill {
		backfillService = backfill.NewService(
			backfill.NewRepository(a.DB),
			backfill.NewRunner(a.Collector, cfg),
			logger,
		)
		backfillService.Start()
		backfillHandler = rest.NewBackfillHandler(backfillService)
		logger.Info("✓ Backfill service started")
	}

	handler := rest.NewHandler(a.EventReads, sched, map[string]rest.HealthChecker{
		"postgres": a.DB,
		"redis":    a.Cache,
	}, serviceVersion, logger)
	restServer := rest.NewServer(rest.Options{Port: cfg.RESTPort, CORSOrigins: cfg.CORSOrigins}, handler, backfillHandler, logger)

	go func() {
		if err := restServer.Start(); err != nil {
			logger.Error("REST server error", zap.Error(err))
		}
	}()
	go func() {
		if err := wsServer.Start(cfg.WSPort); err != nil {
			logger.Error("WebSocket server error", zap.Error(err))
		}
	}()

	logger.Info("✓ augur started",
		zap.String("rest", "http://0.0.0.0:"+cfg.RESTPort),
		zap.String("websocket", "ws://0.0.0.0:"+cfg.WSPort),
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("REST server shutdown error", zap.Error(err))
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown error", zap.Error(err))
	}

	cancel()
	sched.Stop()
	if backfillService != nil {
		if err := backfillService.Shutdown(shutdownCtx); err != nil {
			logger.Warn("backfill shutdown error", zap.Error(err))
		}
	}

	logger.Info("augur stopped")
}
