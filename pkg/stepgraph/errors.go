package stepgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNilSchema indicates NewGraph was given a nil schema.
	ErrNilSchema = errors.New("graph has no schema")

	// ErrInvalidNodeName indicates an empty, blank, or reserved node name.
	ErrInvalidNodeName = errors.New("invalid node name")

	// ErrNilStep indicates AddNode was given a nil step function.
	ErrNilStep = errors.New("step function cannot be nil")

	// ErrNilRouter indicates AddConditionalEdges was given a nil router.
	ErrNilRouter = errors.New("router function cannot be nil")

	// ErrEmptyRoutes indicates a label map with no entries.
	ErrEmptyRoutes = errors.New("label map has no routes")

	// ErrEdgeFromEnd indicates an edge leaving END.
	ErrEdgeFromEnd = errors.New("END cannot have outgoing edges")

	// ErrEdgeToStart indicates an edge entering START.
	ErrEdgeToStart = errors.New("START cannot have incoming edges")

	// ErrMixedEdges indicates a node with both unconditional and conditional edges.
	ErrMixedEdges = errors.New("node has both unconditional and conditional edges")

	// ErrMultipleConditionalEdges indicates a second conditional edge set on one node.
	ErrMultipleConditionalEdges = errors.New("node already has a conditional edge set")

	// ErrNoStartEdge indicates nothing leaves START.
	ErrNoStartEdge = errors.New("no edge leaves START")

	// ErrNoOutgoingEdge indicates a registered node with no way forward.
	ErrNoOutgoingEdge = errors.New("node has no outgoing edge")

	// ErrNoIncomingEdge indicates a registered node nothing points at.
	ErrNoIncomingEdge = errors.New("node has no incoming edge")

	// ErrNoPathToEnd indicates END cannot be reached from START.
	ErrNoPathToEnd = errors.New("no path from START to END")

	// ErrAmbiguousTerminal indicates END listed among several unconditional
	// successors. Only a violation under WithStrictTerminals.
	ErrAmbiguousTerminal = errors.New("END listed among fan-out successors")
)

// Sentinel errors for schema and state handling.
var (
	// ErrInvalidField indicates a malformed field declaration.
	ErrInvalidField = errors.New("invalid field")

	// ErrUnknownField indicates a key that is not part of the schema.
	ErrUnknownField = errors.New("unknown field")

	// ErrKindMismatch indicates a value that does not fit the field's kind.
	ErrKindMismatch = errors.New("value does not match field kind")

	// ErrNotInEnum indicates a string outside the field's allowed values.
	ErrNotInEnum = errors.New("value not allowed")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Invoke was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrEmptyLabel indicates a router returned an empty label.
	ErrEmptyLabel = errors.New("router returned empty label")

	// ErrUnknownLabel indicates a label that the edge set's routes cannot resolve.
	ErrUnknownLabel = errors.New("router returned unknown label")

	// ErrRouteTargetNotFound indicates a label resolved to an unregistered node.
	ErrRouteTargetNotFound = errors.New("route target is not a registered node")

	// ErrMaxIterations indicates the run exceeded the configured step bound.
	ErrMaxIterations = errors.New("exceeded maximum iterations")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrRunIDRequired indicates checkpointing was enabled without a run ID.
	ErrRunIDRequired = errors.New("run ID required for checkpointing")

	// ErrSerializeState indicates state serialization failed.
	ErrSerializeState = errors.New("failed to serialize state")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoints indicates no checkpoints exist for the run.
	ErrNoCheckpoints = errors.New("no checkpoints found for run")

	// ErrInvalidResumeNode indicates the resume node doesn't exist in the graph.
	ErrInvalidResumeNode = errors.New("invalid resume node")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")

	// ErrCheckpointGraphMismatch indicates a checkpoint written by a differently named graph.
	ErrCheckpointGraphMismatch = errors.New("checkpoint graph mismatch")
)

// DuplicateNodeError reports a second registration under an existing name.
type DuplicateNodeError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node %q", e.Name)
}

// UnknownNodeError reports an edge endpoint that was never registered.
type UnknownNodeError struct {
	// Name is the missing node.
	Name string
	// Ref describes the edge that referenced it, e.g. "edge a -> b".
	Ref string
}

// Error implements the error interface.
func (e *UnknownNodeError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("unknown node %q", e.Name)
	}
	return fmt.Sprintf("unknown node %q in %s", e.Name, e.Ref)
}

// ValidationError lists every problem found while compiling a graph.
// errors.Is and errors.As see through it to each violation.
type ValidationError struct {
	Violations []error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "graph validation failed: " + e.Violations[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "graph validation failed with %d violations:", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.Error())
	}
	return b.String()
}

// Unwrap exposes the violations to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Violations
}

// RoutingError reports a router label that could not be turned into a node.
type RoutingError struct {
	// From is the node owning the conditional edge set.
	From string
	// Label is what the router returned.
	Label string
	// Target is the resolved destination, empty if resolution failed earlier.
	Target string
	Err    error
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	if e.Target != "" && e.Target != e.Label {
		return fmt.Sprintf("routing from %s: label %q -> %q: %v", e.From, e.Label, e.Target, e.Err)
	}
	return fmt.Sprintf("routing from %s: label %q: %v", e.From, e.Label, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// StepError reports a failed step: the error it returned, a *PanicError when
// it panicked, or a *MergeError when its update did not fit the schema.
type StepError struct {
	Node string
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	switch e.Err.(type) {
	case *PanicError, *MergeError:
		return e.Err.Error()
	}
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

// Unwrap returns the step's error unchanged.
func (e *StepError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// Node is the node that panicked, or the router's source node.
	Node string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}

// FieldError reports a value that does not fit the schema.
type FieldError struct {
	Field string
	Value any
	Err   error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// MergeError reports an update from a node that the schema rejected.
type MergeError struct {
	Node string
	Err  error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	return fmt.Sprintf("merge update from %s: %v", e.Node, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *MergeError) Unwrap() error {
	return e.Err
}

// ForkJoinError reports a failed branch of a fork.
type ForkJoinError struct {
	// Fork is the node whose successors were running in parallel.
	Fork string
	// Branch is the first node of the failed branch.
	Branch string
	Err    error
}

// Error implements the error interface.
func (e *ForkJoinError) Error() string {
	return fmt.Sprintf("fork %s: branch %s: %v", e.Fork, e.Branch, e.Err)
}

// Unwrap returns the branch error for errors.Is/As support.
func (e *ForkJoinError) Unwrap() error {
	return e.Err
}

// CancellationError reports a run stopped by its context.
type CancellationError struct {
	// Node is the node that was about to execute or was executing.
	Node string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
	// WasExecuting is true if cancellation occurred during node execution.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during node %s: %v", e.Node, e.Cause)
	}
	return fmt.Sprintf("cancelled before node %s: %v", e.Node, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// MaxIterationsError reports a run stopped by WithMaxIterations.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// Node is the node that would have executed next.
	Node string
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.Node)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// Node is the node where checkpointing failed.
	Node string
	// Op is the operation that failed ("serialize", "marshal", "save").
	Op  string
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.Node, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}
