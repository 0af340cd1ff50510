package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipserve/clipserve/internal/config"
)

func jsonLogger(buf *bytes.Buffer, level string) *slog.Logger {
	return NewLoggerWithWriter(config.LoggingConfig{Level: level, Format: "json"}, buf)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Info("hello", slog.String("k", "v"))
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestSignedURLRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	signed := "https://cdn.example.com/video.mp4?expire=1700000000&signature=abc123def"
	logger.Info("resolved format", slog.String("media_url", signed))

	out := buf.String()
	assert.NotContains(t, out, "signature=abc123def")
}

func TestCookiesFieldRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	logger.Info("extractor configured", slog.String("cookies_file", "/home/u/secret-cookies.txt"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotEqual(t, "/home/u/secret-cookies.txt", entry["cookies_file"])
}

func TestPlainURLSurvives(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	logger.Info("analyzing", slog.String("url", "https://example.com/watch?v=abc"))
	assert.Contains(t, buf.String(), "https://example.com/watch?v=abc")
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	logger := slog.Default().With(slog.String("component", "test"))
	ctx = ContextWithLogger(ctx, logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
}
