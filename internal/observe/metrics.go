package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every analysis metric.
const meterName = "speech-analytics-go"

var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// Metrics records lifecycle events as OpenTelemetry instruments.
type Metrics struct {
	// Runs counts started pipelines.
	Runs metric.Int64Counter

	// StageDuration tracks per-stage latency. Attribute: stage.
	StageDuration metric.Float64Histogram

	// Failures counts fatal pipeline errors. Attribute: stage.
	Failures metric.Int64Counter

	// HistoryErrors counts degraded history calls. Attribute: op.
	HistoryErrors metric.Int64Counter
}

var _ Observer = (*Metrics)(nil)

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Runs, err = m.Int64Counter("analysis.runs",
		metric.WithDescription("Analysis pipelines started."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("analysis.stage.duration",
		metric.WithDescription("Latency of each analysis stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("analysis.failures",
		metric.WithDescription("Analysis pipelines that failed, by stage."),
	); err != nil {
		return nil, err
	}
	if met.HistoryErrors, err = m.Int64Counter("analysis.history.errors",
		metric.WithDescription("History store calls that failed, by operation."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// NewGlobalMetrics uses the process-wide meter provider.
func NewGlobalMetrics() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

func (m *Metrics) PipelineStart(ctx context.Context, _ string, _ int) {
	m.Runs.Add(ctx, 1)
}

func (m *Metrics) StageComplete(ctx context.Context, stage Stage, elapsed time.Duration) {
	m.StageDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("stage", string(stage))))
}

func (m *Metrics) PipelineError(ctx context.Context, stage Stage, _ error) {
	m.Failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
}

func (m *Metrics) HistoryDegraded(ctx context.Context, op string, _ error) {
	m.HistoryErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
