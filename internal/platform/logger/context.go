package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type so no other package can collide with the
// logger's context key.
type contextKey struct{}

var loggerKey = contextKey{}

// WithLogger returns a copy of ctx carrying the given logger. Handlers and
// background loops store a logger enriched with their identifying attributes
// (trace id, task id, run id) so downstream code logs with that context
// attached.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext extracts the logger carried by ctx, falling back to the
// process default when none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// FromContextOrDefault extracts the logger carried by ctx, falling back to
// the given component logger, or to the process default when that is nil
// too. Store and service components pass their own logger here so even
// context-free calls keep the component attribute.
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(loggerKey).(*slog.Logger); ok && log != nil {
		return log
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
