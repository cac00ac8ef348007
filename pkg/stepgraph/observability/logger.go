// Package observability provides logging, metrics, and tracing for stepgraph
// runs.
//
// The executor derives a run logger with RunLogger from the logger given to
// WithObservabilityLogger and passes it to the Log* helpers; every helper is a
// no-op for a nil logger. Metrics go through a MetricsRecorder (OpenTelemetry
// or Prometheus) and spans through a SpanManager. DisabledMetrics and
// DisabledSpans back both with the OTel no-op providers.
package observability

import (
	"log/slog"
)

// Branch locates a step inside a fork. The zero Branch is the main path.
// Inside nested forks it names the innermost fork.
type Branch struct {
	Fork string // fork node
	Head string // first node of the branch
}

func (b Branch) attrs() []any {
	if b.Fork == "" {
		return nil
	}
	return []any{slog.String("fork", b.Fork), slog.String("branch", b.Head)}
}

// RunLogger returns logger with the graph name and run id attached.
func RunLogger(logger *slog.Logger, graph, runID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("graph", graph), slog.String("run_id", runID))
}

// StepLogger returns the logger a step or router sees: run_id, node_id and
// attempt, plus fork and branch when the step runs inside a fork.
func StepLogger(logger *slog.Logger, runID, node string, attempt int, b Branch) *slog.Logger {
	if logger == nil {
		return nil
	}
	args := []any{
		slog.String("run_id", runID),
		slog.String("node_id", node),
		slog.Int("attempt", attempt),
	}
	return logger.With(append(args, b.attrs()...)...)
}

// LogRunStart logs the start of a run. resumedFrom is empty for a fresh run.
func LogRunStart(logger *slog.Logger, resumedFrom string, attempt int) {
	if logger == nil {
		return
	}
	if resumedFrom == "" {
		logger.Info("graph run starting")
		return
	}
	logger.Info("graph run resuming",
		slog.String("from", resumedFrom),
		slog.Int("attempt", attempt),
	)
}

func LogRunComplete(logger *slog.Logger, durationMs float64, steps int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps_executed", steps),
	)
}

// LogRunError logs a failed run and the node it stopped at.
func LogRunError(logger *slog.Logger, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("error", err.Error()),
		slog.String("outcome", Outcome(err)),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

func LogStepStart(logger *slog.Logger, node string, b Branch) {
	if logger == nil {
		return
	}
	logger.Debug("step starting", append([]any{slog.String("node_id", node)}, b.attrs()...)...)
}

func LogStepComplete(logger *slog.Logger, node string, b Branch, durationMs float64) {
	if logger == nil {
		return
	}
	args := []any{slog.String("node_id", node), slog.Float64("duration_ms", durationMs)}
	logger.Debug("step completed", append(args, b.attrs()...)...)
}

func LogStepError(logger *slog.Logger, node string, b Branch, err error) {
	if logger == nil {
		return
	}
	args := []any{slog.String("node_id", node), slog.String("error", err.Error())}
	logger.Error("step failed", append(args, b.attrs()...)...)
}

// LogForkJoin logs the merge of a fork's branches. join is END when the
// branches only meet at the end of the graph or a branch ended the run.
func LogForkJoin(logger *slog.Logger, fork, join string, branches int, endedRun bool, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("fork joined",
		slog.String("fork", fork),
		slog.String("join", join),
		slog.Int("branches", branches),
		slog.Bool("ended_run", endedRun),
		slog.Float64("duration_ms", durationMs),
	)
}

func LogCheckpoint(logger *slog.Logger, node string, sequence, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node_id", node),
		slog.Int("sequence", sequence),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a checkpoint failure the run continues past.
func LogCheckpointError(logger *slog.Logger, node string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", node),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
