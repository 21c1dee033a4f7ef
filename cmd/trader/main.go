package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"grid-trade-bot-go/internal/config"
	"grid-trade-bot-go/internal/database"
	"grid-trade-bot-go/internal/exchange"
	"grid-trade-bot-go/internal/logger"
	"grid-trade-bot-go/internal/trader"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Refuse to trade on invalid settings.
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid settings", zap.Error(err))
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize the exchange client behind the throttled, retrying gateway.
	restClient := exchange.NewRestClient(&cfg, log)
	gateway := exchange.NewGateway(restClient, cfg.Exchange.ThrottleInterval, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Wire the trading cycle.
	state := &trader.State{}
	pricing := trader.NewPricing(log, &cfg, gateway, db)
	reconciler := trader.NewReconciler(log, gateway, db, state, trader.NewTicks(&cfg.Trading))
	watcher := trader.NewWatcher(log, &cfg, gateway, db, pricing, reconciler)
	orchestrator := trader.NewOrchestrator(log, &cfg, gateway, db, pricing, watcher, state)

	// Periodic portfolio snapshots.
	if cfg.Snapshots.Enabled {
		recorder := trader.NewRecorder(log, &cfg, gateway, db)
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Snapshots.Cron, func() {
			if err := recorder.Record(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Failed to record portfolio snapshot", zap.Error(err))
			}
		}); err != nil {
			log.Fatal("Invalid snapshot schedule", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Info("Starting trade cycle",
		zap.String("product_id", cfg.Trading.ProductID),
	)
	if err := orchestrator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Trade cycle halted", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
