package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotpulse/internal/config"
)

func TestOTelMetricsEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(config.TelemetryConfig{
		ServiceName:    "cotpulse-test",
		Environment:    "test",
		MetricsEnabled: true,
	}, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	require.NotNil(t, providers.PrometheusHTTP)
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)

	m, err := NewMetrics(providers.Meter)
	require.NoError(t, err)
	ctx := context.Background()
	m.RecordImport(ctx, "positions", "upload", 12, 20*time.Millisecond, nil)
	m.RecordImport(ctx, "history", "watcher", 0, time.Millisecond, errors.New("boom"))
	m.RecordNarrative(ctx, "en", nil)
	m.WebSocketClientsChanged(ctx, 1)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "cot_imports_total")
	assert.Contains(t, body, `outcome="error"`)
	assert.Contains(t, body, "cot_narrative_requests_total")
}

func TestOTelDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(config.TelemetryConfig{ServiceName: "x"}, logger)
	require.NoError(t, err)

	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter)
	assert.NoError(t, providers.Shutdown(context.Background()))

	m := NopMetrics()
	require.NotNil(t, m)
	m.RecordImport(context.Background(), "positions", "api", 1, time.Second, nil)
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()
	RecordError(ctx, errors.New("ignored when not recording"))
}
