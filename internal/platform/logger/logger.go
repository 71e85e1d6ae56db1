package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/cadenza-audio/cadenza-api/internal/config"
)

// Setup initializes the application's logging system from the provided
// server configuration. It creates a JSON logger writing to stdout at the
// configured level, installs it as the process default, and returns it.
//
// An unknown level falls back to info with a warning rather than failing
// startup.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("invalid log level configured, using default",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	log := slog.New(handler)
	slog.SetDefault(log)

	return log, nil
}
