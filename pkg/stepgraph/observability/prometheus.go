package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder is a MetricsRecorder backed by client_golang collectors.
type PrometheusRecorder struct {
	steps          *prometheus.CounterVec
	stepErrors     *prometheus.CounterVec
	stepLatency    *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runLatency     *prometheus.HistogramVec
	forkJoins      *prometheus.CounterVec
	forkBranches   *prometheus.HistogramVec
	forkLatency    *prometheus.HistogramVec
	checkpointSize *prometheus.HistogramVec
}

var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the stepgraph collectors on reg.
// A nil reg uses prometheus.DefaultRegisterer. Registering twice on the same
// registry panics, as with any promauto collector.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	stepLabels := []string{"graph", "node"}
	runLabels := []string{"graph", "outcome"}
	forkLabels := []string{"graph", "fork"}

	return &PrometheusRecorder{
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepgraph",
			Name:      "step_executions_total",
			Help:      "Number of step executions",
		}, stepLabels),
		stepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepgraph",
			Name:      "step_errors_total",
			Help:      "Number of failed step executions",
		}, stepLabels),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepgraph",
			Name:      "step_duration_seconds",
			Help:      "Step execution latency",
			Buckets:   prometheus.DefBuckets,
		}, stepLabels),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepgraph",
			Name:      "runs_total",
			Help:      "Number of finished runs by outcome",
		}, runLabels),
		runLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepgraph",
			Name:      "run_duration_seconds",
			Help:      "Run latency",
			Buckets:   prometheus.DefBuckets,
		}, runLabels),
		forkJoins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepgraph",
			Name:      "fork_joins_total",
			Help:      "Number of forks whose branches merged",
		}, forkLabels),
		forkBranches: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepgraph",
			Name:      "fork_branches",
			Help:      "Branches per fork",
			Buckets:   prometheus.LinearBuckets(2, 2, 8),
		}, forkLabels),
		forkLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepgraph",
			Name:      "fork_duration_seconds",
			Help:      "Time from fork to merged join",
			Buckets:   prometheus.DefBuckets,
		}, forkLabels),
		checkpointSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepgraph",
			Name:      "checkpoint_size_bytes",
			Help:      "Checkpoint size in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, stepLabels),
	}
}

func (p *PrometheusRecorder) RecordStep(_ context.Context, graph, node string, duration time.Duration, err error) {
	p.steps.WithLabelValues(graph, node).Inc()
	p.stepLatency.WithLabelValues(graph, node).Observe(duration.Seconds())
	if err != nil {
		p.stepErrors.WithLabelValues(graph, node).Inc()
	}
}

func (p *PrometheusRecorder) RecordRun(_ context.Context, graph string, duration time.Duration, err error) {
	outcome := Outcome(err)
	p.runs.WithLabelValues(graph, outcome).Inc()
	p.runLatency.WithLabelValues(graph, outcome).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordForkJoin(_ context.Context, graph, fork string, branches int, duration time.Duration) {
	p.forkJoins.WithLabelValues(graph, fork).Inc()
	p.forkBranches.WithLabelValues(graph, fork).Observe(float64(branches))
	p.forkLatency.WithLabelValues(graph, fork).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordCheckpoint(_ context.Context, graph, node string, sizeBytes int64) {
	p.checkpointSize.WithLabelValues(graph, node).Observe(float64(sizeBytes))
}
