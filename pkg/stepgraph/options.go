package stepgraph

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
)

// runConfig holds configuration for one graph execution.
type runConfig struct {
	runID         string
	maxIterations int
	stepTimeout   time.Duration
	runTimeout    time.Duration

	// Fork/join
	maxConcurrency     int
	sequentialBranches bool
	failFast           bool

	// Checkpointing
	checkpointStore        checkpoint.Store
	checkpointFailureFatal bool
	sequence               int

	// Observability
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	listeners []Listener

	// steps counts executed steps across all branches of the run.
	steps atomic.Int64
}

// newRunConfig returns the default execution configuration with opts applied.
func newRunConfig(opts []RunOption) *runConfig {
	cfg := &runConfig{
		metrics: observability.DisabledMetrics(),
		spans:   observability.DisabledSpans(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithRunID sets the run identifier. Required with WithCheckpointing.
// Overrides the Context's run ID for logs, events, and checkpoints.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithMaxIterations bounds the number of step executions in one run,
// branch steps included. Default: 0, unbounded.
//
// Loops in a graph are legitimate and the engine does not bound them by
// default. Use this as a guard against a router that never exits; the run
// fails with *MaxIterationsError.
//
// Example:
//
//	result, err := compiled.Invoke(ctx, input, stepgraph.WithMaxIterations(100))
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithStepTimeout gives every step its own deadline. A step that overruns
// sees its context cancelled; what it returns is treated like any other
// step failure.
func WithStepTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.stepTimeout = d
		}
	}
}

// WithRunTimeout bounds the whole run.
func WithRunTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.runTimeout = d
		}
	}
}

// WithMaxConcurrency limits the number of branches of one fork executing
// simultaneously. 0 = unlimited (all branches start immediately).
func WithMaxConcurrency(n int) RunOption {
	return func(c *runConfig) {
		if n >= 0 {
			c.maxConcurrency = n
		}
	}
}

// WithSequentialBranches runs fork branches one after another in declaration
// order instead of concurrently. Merge order is then deterministic.
func WithSequentialBranches() RunOption {
	return func(c *runConfig) {
		c.sequentialBranches = true
	}
}

// WithFailFast cancels the remaining branches of a fork as soon as one fails.
// Default: false, every branch runs to completion before the error surfaces.
func WithFailFast(enabled bool) RunOption {
	return func(c *runConfig) {
		c.failFast = enabled
	}
}

// WithCheckpointing saves a checkpoint after every step on the main path and
// after every fork merge. Requires WithRunID.
//
// Example:
//
//	store := checkpoint.NewMemoryStore()
//	result, err := compiled.Invoke(ctx, input,
//	    stepgraph.WithCheckpointing(store),
//	    stepgraph.WithRunID("run-123"))
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithCheckpointFailureFatal makes a failed checkpoint save fail the run.
// Default: false, failures are logged and the run continues.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = fatal
	}
}

// WithObservabilityLogger enables run and node lifecycle logging.
// Default: no lifecycle logging. The logger steps see is set on the Context.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.DisabledMetrics()
		}
	}
}

// WithMetricsRecorder records metrics through the given recorder, for example
// observability.NewPrometheusRecorder.
func WithMetricsRecorder(recorder observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if recorder == nil {
			recorder = observability.DisabledMetrics()
		}
		c.metrics = recorder
	}
}

// WithTracing enables OpenTelemetry spans for the run and every node.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.DisabledSpans()
		}
	}
}

// WithListener registers a listener for run lifecycle events.
// May be given more than once.
func WithListener(l Listener) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}
