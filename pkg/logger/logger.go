// Package logger provides a structured, levelled logger built on log/slog.
//
// WithCtx returns the per-request logger injected by the pipeline so every
// line from a handler carries the request id:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("upload stored", "bytes", n)
//	// → time=... level=INFO msg="upload stored" request_id=5f0c... bytes=512
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/webstart/config"
)

var L *slog.Logger

func init() {
	L = New(config.AppEnv(), os.Stdout)
	slog.SetDefault(L)
}

// New builds the logger for env: JSON in production, text otherwise.
func New(env string, out io.Writer) *slog.Logger {
	return slog.New(handlerFor(env, out))
}

func handlerFor(env string, out io.Writer) slog.Handler {
	switch env {
	case "production", "prod":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// Setup replaces the base logger according to cfg. When a Mongo URI is set the
// records are also shipped to MongoDB; the returned closer flushes that sink.
func Setup(cfg config.App) (io.Closer, error) {
	base := handlerFor(cfg.Env, os.Stdout)
	closer := io.Closer(nopCloser{})

	if cfg.Mongo.URI != "" {
		mh, err := NewMongoHandler(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, base)
		if err != nil {
			return closer, err
		}
		base = NewTee(base, mh)
		closer = mh
	}

	L = slog.New(base)
	slog.SetDefault(L)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

type ctxKey struct{}

// WithCtx returns the logger stored in ctx by InjectLogger, or the base
// logger.
func WithCtx(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a *slog.Logger (pre-tagged with request_id) into ctx.
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
