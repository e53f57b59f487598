package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentLoader, Output: &buf})

	l.Info("parsed", FieldRows, 3)
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=loader")
	assert.Contains(t, out, "rows=3")
	assert.NotContains(t, out, "hidden")
}

func TestStructuredLoggerUploadAndError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))

	sl.LogUploadLoaded(context.Background(), "abc", "hours.xlsx", 10, 12.5, true)
	sl.LogError(context.Background(), "render failed", errors.New("boom"), ComponentDashboard, OpRender, nil)

	out := buf.String()
	assert.Contains(t, out, "fingerprint=abc")
	assert.Contains(t, out, "cache_hit=true")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "operation=render")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())

	want := New(DefaultConfig())
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(NewContext(req.Context(), want))
	assert.Same(t, want, FromContext(req.Context()))
}
