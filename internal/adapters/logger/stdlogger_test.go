package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"garbage", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestStdLogger_LevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelWarn)
	ctx := context.Background()

	l.Debug(ctx, "dropped")
	l.Info(ctx, "also dropped")
	l.Warn(ctx, "kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "[WARN] kept")
}

func TestStdLogger_FieldsSortedAndErrorAttached(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelDebug)

	l.Error(context.Background(), errors.New("boom"), "fetch failed", map[string]interface{}{
		"symbol": "SPY",
		"period": 10,
	})

	out := buf.String()
	assert.Contains(t, out, "[ERROR] fetch failed | error: boom")
	assert.Contains(t, out, "period=10 symbol=SPY", "field keys come out sorted")
}
