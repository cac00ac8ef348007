package stepgraph

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
)

// resumeConfig holds options for Resume and ResumeFrom.
type resumeConfig struct {
	replayNode    bool
	stateOverride func(State) State
	validateState func(State) error
	runOpts       []RunOption
}

// ResumeOption configures Resume and ResumeFrom.
type ResumeOption func(*resumeConfig)

// WithReplayNode re-executes the checkpointed node instead of continuing
// after it.
func WithReplayNode() ResumeOption {
	return func(c *resumeConfig) {
		c.replayNode = true
	}
}

// WithStateOverride modifies the restored state before execution continues.
// The result is checked against the schema like an initial record.
func WithStateOverride(fn func(State) State) ResumeOption {
	return func(c *resumeConfig) {
		c.stateOverride = fn
	}
}

// WithStateValidation rejects a restored state before execution continues.
func WithStateValidation(fn func(State) error) ResumeOption {
	return func(c *resumeConfig) {
		c.validateState = fn
	}
}

// WithResumeRunOptions applies run options to the resumed run.
// Checkpointing into the same store under the same run ID is always on.
func WithResumeRunOptions(opts ...RunOption) ResumeOption {
	return func(c *resumeConfig) {
		c.runOpts = append(c.runOpts, opts...)
	}
}

// Resume continues execution from the last checkpoint for a run.
// It loads the latest checkpoint and starts execution from the next node.
//
// Example:
//
//	// Previous run crashed after node B
//	// Resume continues from node C with state from B's checkpoint
//	final, err := compiled.Resume(ctx, store, "run-123")
func (cg *CompiledGraph) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption) (State, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	infos, err := store.List(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
	}

	// Load the latest checkpoint (last in sequence)
	latest := infos[len(infos)-1]
	return cg.resumeAt(ctx, store, runID, latest.NodeID, opts)
}

// ResumeFrom continues execution from a specific checkpoint.
// Unlike Resume, this loads the checkpoint at a specific node rather than the latest.
//
// Example:
//
//	// Retry from a specific node
//	final, err := compiled.ResumeFrom(ctx, store, "run-123", "evaluate")
func (cg *CompiledGraph) ResumeFrom(ctx Context, store checkpoint.Store, runID, node string, opts ...ResumeOption) (State, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return cg.resumeAt(ctx, store, runID, node, opts)
}

func (cg *CompiledGraph) resumeAt(ctx Context, store checkpoint.Store, runID, node string, opts []ResumeOption) (State, error) {
	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := store.Load(ctx, runID, node)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s at node %s", ErrNoCheckpoints, runID, node)
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserializeState, err)
	}

	if cp.Version != checkpoint.Version {
		return nil, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	if cp.Graph != "" && cp.Graph != cg.name {
		return nil, fmt.Errorf("%w: written by graph %q, resuming with %q",
			ErrCheckpointGraphMismatch, cp.Graph, cg.name)
	}

	var raw map[string]any
	if err := cp.DecodeState(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserializeState, err)
	}
	state, err := cg.schema.Materialize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserializeState, err)
	}

	if cfg.stateOverride != nil {
		state, err = cg.schema.Materialize(cfg.stateOverride(state))
		if err != nil {
			return nil, fmt.Errorf("state override: %w", err)
		}
	}

	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return nil, fmt.Errorf("state validation failed: %w", err)
		}
	}

	startNode := cp.NextNode
	if cfg.replayNode {
		startNode = cp.NodeID
	}

	if startNode != END && startNode != START && !cg.HasNode(startNode) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	runOpts := append([]RunOption{}, cfg.runOpts...)
	runOpts = append(runOpts, WithCheckpointing(store), WithRunID(runID))
	runCfg := newRunConfig(runOpts)
	runCfg.sequence = cp.Sequence

	ec := asExecutionContext(ctx)
	ec.attempt = cp.Attempt + 1

	return cg.run(ec, state, startNode, runCfg)
}
