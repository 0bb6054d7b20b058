package logger

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 4, 5, 6, 7, 89_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2026-03-04T04:06:07.089Z", formatRFC3339Millis(ts))
}

func TestNew_Levels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.False(t, New(false).Enabled(ctx, slog.LevelDebug))
	assert.True(t, New(false).Enabled(ctx, slog.LevelInfo))
	assert.True(t, New(true).Enabled(ctx, slog.LevelDebug))
}
