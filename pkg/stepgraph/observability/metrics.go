package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/randalmurphal/stepgraph"

// Run outcomes reported by RecordRun.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Outcome classifies a run's error for metric labels. Deadlines count as
// cancellation.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// MetricsRecorder records run metrics. Every call carries the graph name so
// a single recorder can serve several compiled graphs.
//
// Use NewMetricsRecorder for the global OTel meter provider,
// NewPrometheusRecorder for a Prometheus registry, or DisabledMetrics.
type MetricsRecorder interface {
	// RecordStep records one step execution. Steps inside fork branches are
	// recorded like any other.
	RecordStep(ctx context.Context, graph, node string, duration time.Duration, err error)

	// RecordRun records a finished run, labelled with Outcome(err).
	RecordRun(ctx context.Context, graph string, duration time.Duration, err error)

	// RecordForkJoin records a fork whose branches all merged.
	RecordForkJoin(ctx context.Context, graph, fork string, branches int, duration time.Duration)

	// RecordCheckpoint records a saved checkpoint.
	RecordCheckpoint(ctx context.Context, graph, node string, sizeBytes int64)
}

type otelMetrics struct {
	steps          metric.Int64Counter
	stepErrors     metric.Int64Counter
	stepLatency    metric.Float64Histogram
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	forkJoins      metric.Int64Counter
	forkBranches   metric.Int64Histogram
	forkLatency    metric.Float64Histogram
	checkpointSize metric.Int64Histogram
}

var (
	globalMetrics     *otelMetrics
	globalMetricsOnce sync.Once
	globalMetricsErr  error

	// The no-op meter never fails to create instruments.
	disabledMetrics, _ = newOtelMetrics(metricnoop.NewMeterProvider())
)

func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter(instrumentationName)

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	millis := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		errs = append(errs, err)
		return h
	}

	m := &otelMetrics{
		steps:       counter("stepgraph.step.executions", "Number of step executions"),
		stepErrors:  counter("stepgraph.step.errors", "Number of failed step executions"),
		stepLatency: millis("stepgraph.step.latency_ms", "Step execution latency"),
		runs:        counter("stepgraph.run.count", "Number of finished runs by outcome"),
		runLatency:  millis("stepgraph.run.latency_ms", "Run latency"),
		forkJoins:   counter("stepgraph.fork.joins", "Number of forks whose branches merged"),
		forkLatency: millis("stepgraph.fork.latency_ms", "Time from fork to merged join"),
	}

	var err error
	m.forkBranches, err = meter.Int64Histogram("stepgraph.fork.branches",
		metric.WithDescription("Branches per fork"))
	errs = append(errs, err)
	m.checkpointSize, err = meter.Int64Histogram("stepgraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size"), metric.WithUnit("By"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns the shared recorder on the global OTel meter
// provider. When its instruments cannot be created it logs a warning and
// returns DisabledMetrics.
//
// Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	globalMetricsOnce.Do(func() {
		globalMetrics, globalMetricsErr = newOtelMetrics(otel.GetMeterProvider())
	})
	if globalMetricsErr != nil {
		slog.Warn("metrics initialization failed, recording disabled",
			slog.String("error", globalMetricsErr.Error()))
		return disabledMetrics
	}
	return globalMetrics
}

// NewMetricsRecorderWithProvider returns a recorder bound to provider instead
// of the global one.
func NewMetricsRecorderWithProvider(provider metric.MeterProvider) (MetricsRecorder, error) {
	return newOtelMetrics(provider)
}

// DisabledMetrics returns the shared recorder backed by the OTel no-op meter.
// Runs use it unless metrics are enabled.
func DisabledMetrics() MetricsRecorder {
	return disabledMetrics
}

func (m *otelMetrics) RecordStep(ctx context.Context, graph, node string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("graph", graph), attribute.String("node", node))
	m.steps.Add(ctx, 1, attrs)
	m.stepLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.stepErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordRun(ctx context.Context, graph string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("graph", graph), attribute.String("outcome", Outcome(err)))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordForkJoin(ctx context.Context, graph, fork string, branches int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("graph", graph), attribute.String("fork", fork))
	m.forkJoins.Add(ctx, 1, attrs)
	m.forkBranches.Record(ctx, int64(branches), attrs)
	m.forkLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, graph, node string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes,
		metric.WithAttributes(attribute.String("graph", graph), attribute.String("node", node)))
}
