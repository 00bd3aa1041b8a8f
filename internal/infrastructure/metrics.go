package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the application instruments. The zero value is not usable;
// build one with NewMetrics or NopMetrics.
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	ImportsTotal    metric.Int64Counter
	ImportRecords   metric.Int64Histogram
	ParseDuration   metric.Float64Histogram
	NarrativeTotal  metric.Int64Counter
	WebSocketClient metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of active HTTP requests")); err != nil {
		return nil, err
	}
	if m.ImportsTotal, err = meter.Int64Counter("cot_imports_total",
		metric.WithDescription("Dataset imports by dataset, source and outcome")); err != nil {
		return nil, err
	}
	if m.ImportRecords, err = meter.Int64Histogram("cot_import_records",
		metric.WithDescription("Records produced per successful import")); err != nil {
		return nil, err
	}
	if m.ParseDuration, err = meter.Float64Histogram("cot_parse_duration_seconds",
		metric.WithDescription("Time spent decoding and parsing an import"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.NarrativeTotal, err = meter.Int64Counter("cot_narrative_requests_total",
		metric.WithDescription("Narrative analysis requests by outcome")); err != nil {
		return nil, err
	}
	if m.WebSocketClient, err = meter.Int64UpDownCounter("cot_websocket_clients",
		metric.WithDescription("Connected websocket clients")); err != nil {
		return nil, err
	}
	return &m, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordImport records one dataset import attempt.
func (m *Metrics) RecordImport(ctx context.Context, dataset, source string, records int, took time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("source", source),
		attribute.String("outcome", outcome(err)),
	)
	m.ImportsTotal.Add(ctx, 1, attrs)
	m.ParseDuration.Record(ctx, took.Seconds(), attrs)
	if err == nil {
		m.ImportRecords.Record(ctx, int64(records), metric.WithAttributes(attribute.String("dataset", dataset)))
	}
}

// RecordNarrative records one narrative request.
func (m *Metrics) RecordNarrative(ctx context.Context, lang string, err error) {
	m.NarrativeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lang", lang),
		attribute.String("outcome", outcome(err)),
	))
}

// WebSocketClientsChanged adjusts the connected client gauge.
func (m *Metrics) WebSocketClientsChanged(ctx context.Context, delta int64) {
	m.WebSocketClient.Add(ctx, delta)
}
