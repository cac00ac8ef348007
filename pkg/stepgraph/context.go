package stepgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
)

// Context provides execution context to steps and routers.
// It extends context.Context with stepgraph-specific services and metadata.
//
// Collaborators such as an LLM client travel as ordinary context values
// (see the llm package's WithClient) so the engine stays independent of them.
//
// Context is immutable after creation. The executor creates derived contexts
// for each node with updated NodeID and enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the current node being executed.
	// Empty string outside of a step or router.
	NodeID() string

	// Attempt returns the attempt number (1 = first attempt).
	// Runs resumed from a checkpoint continue with the next attempt.
	Attempt() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	nodeID  string
	attempt int

	// branch is set while a fork branch runs.
	branch observability.Branch
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Attempt returns the attempt number.
func (c *executionContext) Attempt() int {
	return c.attempt
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, node_id, and attempt during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
// This is used for logging and tracing. For checkpointing, use
// WithRunID() as a RunOption with Invoke().
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// stepgraph-specific services and metadata.
//
// Example:
//
//	ctx := stepgraph.NewContext(context.Background(),
//	    stepgraph.WithLogger(myLogger),
//	    stepgraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		attempt: 1,
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// asExecutionContext returns a private copy of ctx as the internal type,
// so the executor can derive from it without touching the caller's value.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		cp := *ec
		return &cp
	}
	logger := ctx.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	attempt := ctx.Attempt()
	if attempt < 1 {
		attempt = 1
	}
	return &executionContext{
		Context: ctx,
		logger:  logger,
		runID:   ctx.RunID(),
		nodeID:  ctx.NodeID(),
		attempt: attempt,
	}
}

// withNodeID returns a new context with the given node ID set.
// Used internally by the executor to enrich the context per-node.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  observability.StepLogger(c.logger, c.runID, nodeID, c.attempt, c.branch),
		runID:   c.runID,
		nodeID:  nodeID,
		attempt: c.attempt,
		branch:  c.branch,
	}
}

// withBranch returns a copy for the steps of one fork branch.
func (c *executionContext) withBranch(fork, head string) *executionContext {
	cp := *c
	cp.branch = observability.Branch{Fork: fork, Head: head}
	return &cp
}

// withBase returns a copy that carries a derived context.Context
// (deadline, cancellation, span) and keeps everything else.
func (c *executionContext) withBase(base context.Context) *executionContext {
	cp := *c
	cp.Context = base
	return &cp
}
