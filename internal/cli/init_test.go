package cli

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := SetupLogger("debug", "worker")
	assert.Equal(t, "worker", l.Component())
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, l.Logger, slog.Default())

	l = SetupLogger("loud", "app")
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
}
