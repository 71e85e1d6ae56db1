// Package logger sets up the application's structured logging on top of
// log/slog and carries request- and job-scoped loggers through context.
// Output is JSON on stdout; the level comes from server configuration.
package logger
