package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/logger"
	"github.com/Devendra181/ECommerceSystem-sub000/services/orchestrator/internal/app"
	"github.com/Devendra181/ECommerceSystem-sub000/services/orchestrator/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("orchestrator", cfg.LogLevel)
	log.Info("starting saga orchestrator",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("snapshot_store", cfg.SnapshotStore),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("saga orchestrator stopped")
}
