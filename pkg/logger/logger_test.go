package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPicksHandlerByEnv(t *testing.T) {
	var buf bytes.Buffer
	New("production", &buf).Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "expected JSON, got %q", buf.String())

	buf.Reset()
	New("development", &buf).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestProductionDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	New("production", &buf).Debug("noise")
	assert.Empty(t, buf.String())
}

func TestWithCtx(t *testing.T) {
	assert.Same(t, L, WithCtx(context.Background()))

	var buf bytes.Buffer
	reqLog := New("development", &buf).With("request_id", "abc")
	ctx := InjectLogger(context.Background(), reqLog)

	WithCtx(ctx).Info("tagged")
	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestTeeFansOut(t *testing.T) {
	var a, b bytes.Buffer
	tee := NewTee(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	log := slog.New(tee).With("svc", "web")

	log.Info("info line")
	log.Warn("warn line")

	assert.Contains(t, a.String(), "info line")
	assert.Contains(t, a.String(), "warn line")
	assert.NotContains(t, b.String(), "info line")
	assert.Contains(t, b.String(), "warn line")
	assert.Contains(t, b.String(), "svc=web")
}

func TestToRecord(t *testing.T) {
	now := time.Now()
	r := slog.NewRecord(now, slog.LevelInfo, "request", 0)
	r.AddAttrs(
		slog.String("method", "GET"),
		slog.String("path", "/x"),
		slog.Int("status", 404),
		slog.String("duration", "1ms"),
	)

	rec := toRecord(r, []slog.Attr{slog.String("request_id", "rid-1")}, nil)

	assert.Equal(t, now, rec.Time)
	assert.Equal(t, "INFO", rec.Level)
	assert.Equal(t, "request", rec.Msg)
	assert.Equal(t, "rid-1", rec.RequestID)
	assert.Equal(t, "GET", rec.Method)
	assert.Equal(t, "/x", rec.Path)
	assert.EqualValues(t, 404, rec.Status)
	require.NotNil(t, rec.Attrs)
	assert.Equal(t, "1ms", rec.Attrs["duration"])
}

func TestToRecordGroups(t *testing.T) {
	r := slog.NewRecord(time.Now(), slog.LevelWarn, "grouped", 0)
	r.AddAttrs(slog.String("key", "v"))

	rec := toRecord(r, nil, []string{"http", "req"})
	assert.Equal(t, "v", rec.Attrs["http.req.key"])
}

func TestToRecordNoAttrs(t *testing.T) {
	rec := toRecord(slog.NewRecord(time.Now(), slog.LevelError, "bare", 0), nil, nil)
	assert.Nil(t, rec.Attrs)
}

func TestLevelOf(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelOf(handlerFor("production", &bytes.Buffer{})).Level())
	assert.Equal(t, slog.LevelDebug, levelOf(handlerFor("development", &bytes.Buffer{})).Level())
}
