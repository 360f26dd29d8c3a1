package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: "json", Output: buf, Component: ComponentHTTP})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo)

	logger.Info("first")
	logger.WithComponent(ComponentDatabase).With(FieldRequestID, "req_1").Warn("second")
	logger.Debug("filtered")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "http", lines[0][FieldComponent])
	assert.Equal(t, "database", lines[1][FieldComponent])
	assert.Equal(t, "req_1", lines[1][FieldRequestID])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo)

	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	assert.NotNil(t, fallback.Logger)

	other := jsonLogger(&buf, slog.LevelInfo)
	assert.Same(t, logger, FromContextOr(ctx, other))
	assert.Same(t, other, FromContextOr(context.Background(), other))
}

func TestStructuredLogger_HTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(jsonLogger(&buf, slog.LevelDebug))
		r := httptest.NewRequest("GET", "/api/expenses?x=1", nil)

		sl.LogHTTPEnd(context.Background(), r, tt.status, 15*time.Millisecond, "10.0.0.1")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, tt.level, lines[0]["level"])
		assert.EqualValues(t, tt.status, lines[0][FieldStatusCode])
		assert.Equal(t, "/api/expenses", lines[0][FieldPath])
		assert.Equal(t, "10.0.0.1", lines[0][FieldClientIP])
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, slog.LevelInfo))

	sl.LogError(context.Background(), "Store operation failed", errors.New("boom"),
		ComponentStorage, OpCreate, NewFields().WithErrorType(ErrorTypeDatabase))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "storage", lines[0][FieldComponent])
	assert.Equal(t, "boom", lines[0][FieldError])
	assert.Equal(t, OpCreate, lines[0][FieldOperation])
	assert.Equal(t, ErrorTypeDatabase, lines[0][FieldErrorType])
}
