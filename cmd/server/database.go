package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// pingTimeout bounds the startup connectivity check.
const pingTimeout = 5 * time.Second

// openDatabase opens a pgx-backed database/sql handle and verifies
// connectivity with a bounded ping.
func openDatabase(ctx context.Context, databaseURL string, logg *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		closeDatabase(db, logg)
		return nil, fmt.Errorf("pinging database %s: %w", maskDatabaseURL(databaseURL), err)
	}

	logg.Info("database connection established",
		slog.String("url", maskDatabaseURL(databaseURL)))
	return db, nil
}

// closeDatabase closes the handle, logging rather than failing on error.
func closeDatabase(db *sql.DB, logg *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logg.Error("failed to close database", slog.String("error", err.Error()))
	}
}

// maskDatabaseURL hides the password in a connection URL for safe logging.
func maskDatabaseURL(databaseURL string) string {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "[unparseable database URL]"
	}
	if parsed.User != nil {
		if _, has := parsed.User.Password(); has {
			parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
		}
	}
	return parsed.String()
}
