package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCaptureKeepsBoundAttrs(t *testing.T) {
	logger, capture := NewLogCapture(t)

	logger.With(slog.String("component", "store")).Warn("slow write", slog.Int("ms", 40))
	logger.Info("plain")

	records := capture.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "store", records[0].Attrs["component"])
	assert.Equal(t, int64(40), records[0].Attrs["ms"])
	assert.NotContains(t, records[1].Attrs, "component")

	r := AssertLogged(t, capture, slog.LevelWarn, "slow")
	assert.Equal(t, "slow write", r.Message)
	_, ok := capture.Find(slog.LevelError, "slow")
	assert.False(t, ok)
	AssertNoErrors(t, capture)
}
