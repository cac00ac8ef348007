package stepgraph

import (
	"testing"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
	"github.com/stretchr/testify/assert"
)

func TestNewRunConfig_Defaults(t *testing.T) {
	cfg := newRunConfig(nil)

	assert.Zero(t, cfg.maxIterations)
	assert.Zero(t, cfg.stepTimeout)
	assert.Zero(t, cfg.runTimeout)
	assert.Zero(t, cfg.maxConcurrency)
	assert.False(t, cfg.sequentialBranches)
	assert.False(t, cfg.failFast)
	assert.Nil(t, cfg.checkpointStore)
	assert.False(t, cfg.checkpointFailureFatal)
	assert.Nil(t, cfg.logger)
	assert.Same(t, observability.DisabledMetrics(), cfg.metrics)
	assert.Same(t, observability.DisabledSpans(), cfg.spans)
}

func TestRunOptions(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cfg := newRunConfig([]RunOption{
		WithRunID("r"),
		WithMaxIterations(10),
		WithStepTimeout(time.Second),
		WithRunTimeout(time.Minute),
		WithMaxConcurrency(3),
		WithSequentialBranches(),
		WithFailFast(true),
		WithCheckpointing(store),
		WithCheckpointFailureFatal(true),
	})

	assert.Equal(t, "r", cfg.runID)
	assert.Equal(t, 10, cfg.maxIterations)
	assert.Equal(t, time.Second, cfg.stepTimeout)
	assert.Equal(t, time.Minute, cfg.runTimeout)
	assert.Equal(t, 3, cfg.maxConcurrency)
	assert.True(t, cfg.sequentialBranches)
	assert.True(t, cfg.failFast)
	assert.Same(t, store, cfg.checkpointStore)
	assert.True(t, cfg.checkpointFailureFatal)
}

func TestRunOptions_IgnoreInvalidValues(t *testing.T) {
	cfg := newRunConfig([]RunOption{
		WithMaxIterations(0),
		WithMaxIterations(-5),
		WithStepTimeout(-time.Second),
		WithRunTimeout(0),
		WithMaxConcurrency(-1),
		WithMetricsRecorder(nil),
	})

	assert.Zero(t, cfg.maxIterations)
	assert.Zero(t, cfg.stepTimeout)
	assert.Zero(t, cfg.runTimeout)
	assert.Zero(t, cfg.maxConcurrency)
	assert.Same(t, observability.DisabledMetrics(), cfg.metrics)
}

func TestRunOptions_Tracing(t *testing.T) {
	cfg := newRunConfig([]RunOption{WithTracing(true)})
	assert.NotSame(t, observability.DisabledSpans(), cfg.spans)

	cfg = newRunConfig([]RunOption{WithTracing(true), WithTracing(false)})
	assert.Same(t, observability.DisabledSpans(), cfg.spans)
}
