package resource

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "asr_server/internal/resource"

// Metrics holds the OpenTelemetry instruments the resource supervisor and
// pipeline record into. A Prometheus exporter bridge makes them scrapable
// from the existing /metrics route without a separate OTLP collector.
type Metrics struct {
	OOMCount       metric.Int64Counter
	StageLatency   metric.Float64Histogram
	ActiveSessions metric.Int64UpDownCounter
}

var latencyBucketsMs = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// NewMetrics creates the instrument set against the given meter provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)

	oomCount, err := m.Int64Counter("asr.pipeline.gpu_oom_count",
		metric.WithDescription("Count of GPU_OOM events, buffer skipped per occurrence."))
	if err != nil {
		return nil, err
	}

	stageLatency, err := m.Float64Histogram("asr.pipeline.stage_latency_ms",
		metric.WithDescription("Latency of a pipeline stage in milliseconds."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(latencyBucketsMs...))
	if err != nil {
		return nil, err
	}

	activeSessions, err := m.Int64UpDownCounter("asr.sessions.active",
		metric.WithDescription("Number of currently open transcription sessions."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		OOMCount:       oomCount,
		StageLatency:   stageLatency,
		ActiveSessions: activeSessions,
	}, nil
}

// RecordOOM increments the GPU_OOM counter.
func (m *Metrics) RecordOOM(ctx context.Context) {
	m.OOMCount.Add(ctx, 1)
}

// RecordStageLatency records a pipeline stage's duration in milliseconds,
// tagged with the stage name (the session runtime records "partial" and
// "final").
func (m *Metrics) RecordStageLatency(ctx context.Context, stage string, ms float64) {
	m.StageLatency.Record(ctx, ms, metric.WithAttributes(stageAttr(stage)))
}

// SessionOpened increments the active-session gauge.
func (m *Metrics) SessionOpened(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// SessionClosed decrements the active-session gauge.
func (m *Metrics) SessionClosed(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String("stage", stage)
}

// InitMeterProvider wires a Prometheus exporter into an OTel
// MeterProvider and returns it along with a shutdown function to call
// during graceful server shutdown.
func InitMeterProvider() (*sdkmetric.MeterProvider, func(context.Context) error, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return mp, mp.Shutdown, nil
}
