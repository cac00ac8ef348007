package stepgraph

import (
	"context"
	"time"
)

// EventKind names a point in a run's lifecycle.
type EventKind string

const (
	EventRunStarted    EventKind = "run.started"
	EventNodeStarted   EventKind = "node.started"
	EventNodeCompleted EventKind = "node.completed"
	EventNodeFailed    EventKind = "node.failed"
	EventForkJoined    EventKind = "fork.joined"
	EventRunCompleted  EventKind = "run.completed"
	EventRunFailed     EventKind = "run.failed"
)

// Event describes one lifecycle point of a run.
type Event struct {
	Kind  EventKind `json:"kind"`
	RunID string    `json:"run_id"`
	// Graph is the compiled graph's name.
	Graph string `json:"graph"`
	// Node is empty for run-level events and names the fork for fork.joined.
	Node     string        `json:"node,omitempty"`
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Listener receives run lifecycle events.
//
// OnEvent is called synchronously from the executor, from branch goroutines
// as well, so implementations must be safe for concurrent use and should
// return quickly. A panicking listener is recovered and ignored.
type Listener interface {
	OnEvent(ctx context.Context, e Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, e Event)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(ctx context.Context, e Event) {
	f(ctx, e)
}

// emit delivers an event to every configured listener.
func (cg *CompiledGraph) emit(ctx context.Context, cfg *runConfig, e Event) {
	if len(cfg.listeners) == 0 {
		return
	}
	e.Graph = cg.name
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	for _, l := range cfg.listeners {
		notify(ctx, l, e)
	}
}

func notify(ctx context.Context, l Listener, e Event) {
	defer func() {
		_ = recover()
	}()
	l.OnEvent(ctx, e)
}
