package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(&Config{Level: level, ServiceName: "redistribution-service", Environment: "test", Version: "1.2.3", Output: buf}), buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

// TestServiceAttributes tests the attributes every entry carries
func TestServiceAttributes(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.WithSKU("SKU-100").WithError(errors.New("boom")).Info("hello")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "redistribution-service", entries[0]["service"])
	assert.Equal(t, "test", entries[0]["environment"])
	assert.Equal(t, "1.2.3", entries[0]["version"])
	assert.Equal(t, "SKU-100", entries[0]["sku"])
	assert.Equal(t, "boom", entries[0]["error"])
}

// TestWithContext tests request, correlation and span ids
func TestWithContext(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")

	logger.Plan(ctx, "preview", "SKU-100", 60, 2, 45)

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0]["requestId"])
	assert.Equal(t, "corr-1", entries[0]["correlationId"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[0]["traceId"])
	assert.Equal(t, "00f067aa0ba902b7", entries[0]["spanId"])
	assert.Equal(t, float64(45), entries[0]["totalQuantity"])
	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
}

// TestLevels tests level filtering
func TestLevels(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn)

	logger.Info("dropped")
	logger.Rejection(context.Background(), "SKU-100", "insufficient_stock", nil)
	logger.DatabaseQuery(context.Background(), "products", "find", 0, false)

	entries := lines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "insufficient_stock", entries[0]["reason"])
	assert.NotContains(t, entries[0], "error")
	assert.Equal(t, "ERROR", entries[1]["level"])
}

// TestParseLevel tests unknown levels default to info
func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel(LevelDebug).String())
	assert.Equal(t, "INFO", parseLevel(LogLevel("verbose")).String())
}
