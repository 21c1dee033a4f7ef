package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"grid-trade-bot-go/internal/config"
	"grid-trade-bot-go/internal/estimator"
	"grid-trade-bot-go/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	router := estimator.NewRouter(log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting estimator server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal("Estimator server failed", zap.Error(err))
	}
}
