// Package logger provides the structured, levelled logger for Braseiro,
// built on log/slog.
//
// Console output switches between human-readable text (dev) and JSON
// (production). When MONGO_URI is configured, warning-and-above records
// are additionally shipped to a MongoDB collection so storage fallbacks
// and skipped-record events survive terminal scrollback.
//
//	log := logger.WithCtx(r.Context())
//	log.Warn("structured backend call failed", "op", "saveOrder")
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/rmoraes/braseiro/config"
)

var (
	L       *slog.Logger
	console slog.Handler
	mongoH  *MongoHandler
)

func init() {
	opts := &slog.HandlerOptions{}

	switch config.AppEnv() {
	case "production", "prod":
		opts.Level = slog.LevelInfo
		console = slog.NewJSONHandler(os.Stdout, opts)
	default:
		opts.Level = slog.LevelDebug
		console = slog.NewTextHandler(os.Stdout, opts)
	}

	L = slog.New(console)
	slog.SetDefault(L)
}

// EnableMongoSink attaches the asynchronous MongoDB handler for
// warning-and-above records. No-op when MONGO_URI is unset.
// Call once at boot, after config.Load().
func EnableMongoSink() error {
	uri := config.MongoURI()
	if uri == "" {
		return nil
	}

	h, err := NewMongoHandler(uri, config.Brand(), "logs", slog.LevelWarn)
	if err != nil {
		return err
	}

	mongoH = h
	L = slog.New(NewMultiHandler(console, h))
	slog.SetDefault(L)
	return nil
}

// CloseSinks flushes and disconnects any attached log sinks.
func CloseSinks() {
	if mongoH != nil {
		mongoH.Close()
	}
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

// ctxKey is the unexported key used to store a per-request *slog.Logger.
type ctxKey struct{}

// WithCtx returns the request-scoped logger injected by the Logger
// middleware, or the base logger when none is present.
func WithCtx(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a *slog.Logger (pre-tagged with request_id) into ctx.
// Called by the Logger middleware — not usually needed in application code.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// ─────────────────────────────────────────────
// Short-hand helpers (use base logger)
// ─────────────────────────────────────────────

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
