package stepgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
)

// Invoke runs the graph from START to END and returns the final state.
//
// The initial record is materialized against the schema: fields it omits take
// their defaults, unknown keys and ill-typed values fail before anything runs.
//
// On any failure (step error, panic, rejected update, routing error,
// cancellation, or a fatal checkpoint error) the run stops and Invoke returns
// a nil State with the error. There is no partially successful result.
//
// Execution flow:
//  1. Materialize state from initial
//  2. Leave START through its edge, conditional set, or fork
//  3. Check for cancellation and the optional iteration bound
//  4. Run the current node's step on a snapshot and merge its update
//  5. Resolve the next node (unconditional edge, router label, or fork/join)
//  6. Repeat until END is reached
//
// Example:
//
//	ctx := stepgraph.NewContext(context.Background())
//	final, err := compiled.Invoke(ctx, map[string]any{"topic": "go"})
//	if err != nil {
//	    var stepErr *stepgraph.StepError
//	    if errors.As(err, &stepErr) {
//	        // stepErr.Node failed
//	    }
//	}
func (cg *CompiledGraph) Invoke(ctx Context, initial map[string]any, opts ...RunOption) (State, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := newRunConfig(opts)
	if cfg.checkpointStore != nil && cfg.runID == "" {
		return nil, ErrRunIDRequired
	}

	state, err := cg.schema.Materialize(initial)
	if err != nil {
		return nil, err
	}

	return cg.run(asExecutionContext(ctx), state, START, cfg)
}

// run wraps execute with run-level observability, listeners and the run deadline.
// It is shared by Invoke and the resume entry points.
func (cg *CompiledGraph) run(ec *executionContext, state State, from string, cfg *runConfig) (result State, runErr error) {
	if cfg.runID != "" {
		ec.runID = cfg.runID
	} else {
		cfg.runID = ec.runID
	}

	if cfg.runTimeout > 0 {
		timeoutCtx, cancel := context.WithTimeout(ec.Context, cfg.runTimeout)
		defer cancel()
		ec = ec.withBase(timeoutCtx)
	}

	resumedFrom := ""
	if from != START {
		resumedFrom = from
	}
	cfg.logger = observability.RunLogger(cfg.logger, cg.name, cfg.runID)

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, resumedFrom, ec.attempt)
	cg.emit(ec, cfg, Event{Kind: EventRunStarted, RunID: cfg.runID})

	spanCtx, runSpan := cfg.spans.StartRunSpan(ec.Context, cg.name, cfg.runID, resumedFrom)
	ec = ec.withBase(spanCtx)
	defer func() {
		cfg.spans.EndSpan(runSpan, runErr)
	}()

	result, lastNode, runErr := cg.execute(ec, state, from, cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	cfg.metrics.RecordRun(ec, cg.name, duration, runErr)

	if runErr != nil {
		observability.LogRunError(cfg.logger, runErr, durationMs, lastNode)
		cg.emit(ec, cfg, Event{Kind: EventRunFailed, RunID: cfg.runID, Node: lastNode, Duration: duration, Error: runErr.Error()})
		return nil, runErr
	}

	observability.LogRunComplete(cfg.logger, durationMs, int(cfg.steps.Load()))
	cg.emit(ec, cfg, Event{Kind: EventRunCompleted, RunID: cfg.runID, Duration: duration})
	return result, nil
}

// execute drives the main path. from is the next node to execute; START
// means nothing has executed yet. Returns the final state, and on failure
// the node the run stopped at.
func (cg *CompiledGraph) execute(ec *executionContext, state State, from string, cfg *runConfig) (State, string, error) {
	current := from
	prev := ""

	for current != END {
		if err := checkCancelled(ec, current); err != nil {
			return nil, current, err
		}

		if current != START {
			u, err := cg.runStep(ec, current, state, cfg)
			if err != nil {
				return nil, current, err
			}
			if err := cg.schema.Apply(state, u); err != nil {
				return nil, current, &StepError{Node: current, Err: &MergeError{Node: current, Err: err}}
			}
		}

		var next string
		var err error
		if fork, ok := cg.forkNodes[current]; ok {
			next, _, err = cg.runFork(ec, fork, state, cfg)
		} else {
			next, err = cg.resolve(ec, current, state)
		}
		if err != nil {
			return nil, current, err
		}

		if cfg.checkpointStore != nil && (current != START || cg.forkNodes[START] != nil) {
			if err := cg.saveCheckpoint(ec, cfg, current, prev, state, next); err != nil {
				return nil, current, err
			}
		}

		prev = current
		current = next
	}

	return state, "", nil
}

// checkCancelled returns a CancellationError if ctx is done.
func checkCancelled(ctx context.Context, node string) error {
	select {
	case <-ctx.Done():
		return &CancellationError{
			Node:         node,
			Cause:        ctx.Err(),
			WasExecuting: false,
		}
	default:
		return nil
	}
}

// runStep executes one node's step with observability, the optional step
// deadline and panic recovery. The step sees a private snapshot of state.
func (cg *CompiledGraph) runStep(ec *executionContext, node string, state State, cfg *runConfig) (Update, error) {
	if cfg.maxIterations > 0 {
		if n := cfg.steps.Add(1); n > int64(cfg.maxIterations) {
			return nil, &MaxIterationsError{Max: cfg.maxIterations, Node: node}
		}
	} else {
		cfg.steps.Add(1)
	}

	nodeCtx := ec.withNodeID(node)
	if cfg.stepTimeout > 0 {
		timeoutCtx, cancel := context.WithTimeout(nodeCtx.Context, cfg.stepTimeout)
		defer cancel()
		nodeCtx = nodeCtx.withBase(timeoutCtx)
	}

	spanCtx, stepSpan := cfg.spans.StartStepSpan(nodeCtx.Context, node)
	nodeCtx = nodeCtx.withBase(spanCtx)

	observability.LogStepStart(cfg.logger, node, ec.branch)
	cg.emit(nodeCtx, cfg, Event{Kind: EventNodeStarted, RunID: cfg.runID, Node: node})

	nodeStart := time.Now()
	u, err := cg.callStep(nodeCtx, node, state.Clone())
	duration := time.Since(nodeStart)

	cfg.metrics.RecordStep(nodeCtx, cg.name, node, duration, err)
	cfg.spans.EndSpan(stepSpan, err)

	if err != nil {
		observability.LogStepError(cfg.logger, node, ec.branch, err)
		cg.emit(nodeCtx, cfg, Event{Kind: EventNodeFailed, RunID: cfg.runID, Node: node, Duration: duration, Error: err.Error()})
		return nil, err
	}

	observability.LogStepComplete(cfg.logger, node, ec.branch, float64(duration.Milliseconds()))
	cg.emit(nodeCtx, cfg, Event{Kind: EventNodeCompleted, RunID: cfg.runID, Node: node, Duration: duration})
	return u, nil
}

// callStep invokes the step function with panic recovery.
func (cg *CompiledGraph) callStep(ctx Context, node string, snapshot State) (u Update, err error) {
	fn, exists := cg.nodes[node]
	if !exists {
		// Compile rejects graphs that could get here.
		return nil, &StepError{Node: node, Err: fmt.Errorf("node not found: %s", node)}
	}

	defer func() {
		if r := recover(); r != nil {
			u = nil
			err = &StepError{Node: node, Err: &PanicError{
				Node:  node,
				Value: r,
				Stack: string(debug.Stack()),
			}}
		}
	}()

	u, err = fn(ctx, snapshot)
	if err != nil {
		return nil, &StepError{Node: node, Err: err}
	}
	return u, nil
}

// resolve determines the single next node after current.
// A conditional set consults its router; otherwise the only runtime
// successor is taken.
func (cg *CompiledGraph) resolve(ec *executionContext, current string, state State) (string, error) {
	c, hasConditional := cg.conditionalEdges[current]
	if !hasConditional {
		targets := cg.next[current]
		if len(targets) == 0 {
			// Compile rejects graphs that could get here.
			return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
		}
		return targets[0], nil
	}

	label, err := callRouter(ec.withNodeID(current), current, c.router, state.Clone())
	if err != nil {
		return "", err
	}
	if label == "" {
		return "", &RoutingError{From: current, Label: label, Err: ErrEmptyLabel}
	}

	target, err := c.routes.resolve(label)
	if err != nil {
		return "", &RoutingError{From: current, Label: label, Err: err}
	}
	if target != END && !cg.HasNode(target) {
		return "", &RoutingError{From: current, Label: label, Target: target, Err: ErrRouteTargetNotFound}
	}
	return target, nil
}

// callRouter invokes a router with panic recovery.
func callRouter(ctx Context, from string, router RouterFunc, snapshot State) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Node:  from,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return router(ctx, snapshot), nil
}

// saveCheckpoint persists the state after node (and, for a fork, after its
// merge). Failures are logged unless WithCheckpointFailureFatal is set.
func (cg *CompiledGraph) saveCheckpoint(ec *executionContext, cfg *runConfig, node, prevNode string, state State, nextNode string) error {
	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{Node: node, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, node, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", errors.Join(ErrSerializeState, err))
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.runID, node, cfg.sequence, stateBytes, nextNode).
		WithGraph(cg.name).
		WithPrevNode(prevNode).
		WithAttempt(ec.attempt)

	data, err := cp.Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	if err := cfg.checkpointStore.Save(ec, cfg.runID, node, data); err != nil {
		return fail("save", err)
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(cfg.logger, node, cfg.sequence, sizeBytes)
	cfg.metrics.RecordCheckpoint(ec, cg.name, node, int64(sizeBytes))
	return nil
}
