// Package main implements the entry point for the Cadenza API server,
// which schedules text-prompted music generation onto a single model
// worker and manages the fine-tuning pipeline that produces model
// checkpoints.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/cadenza-audio/cadenza-api/internal/config"
	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

// run wires the application and blocks until shutdown completes.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logg, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}

	logg.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("output_dir", cfg.Generation.OutputDir),
		slog.String("database_url", maskDatabaseURL(cfg.Database.URL)))

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer app.cleanup()

	if err := app.worker.Start(); err != nil {
		return fmt.Errorf("starting generation worker: %w", err)
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}
