// Package checkpoint provides persistent checkpoint storage for crash recovery.
//
// A checkpoint is a versioned JSON envelope holding a run's serialized state
// after one node, plus the node to continue from. Stores keep the latest
// checkpoint per (run, node) and order a run's checkpoints by save order.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists checkpoints for crash recovery.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a run at a specific node.
	// Overwrites if checkpoint for (runID, nodeID) already exists; the
	// overwritten checkpoint moves to the end of the run's order.
	Save(ctx context.Context, runID, nodeID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if checkpoint doesn't exist.
	Load(ctx context.Context, runID, nodeID string) ([]byte, error)

	// List returns all checkpoints for a run, ordered by sequence.
	// Returns empty slice (not error) if run has no checkpoints.
	List(ctx context.Context, runID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if checkpoint doesn't exist.
	Delete(ctx context.Context, runID, nodeID string) error

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if run has no checkpoints.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	RunID     string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)

// Latest returns the most recently saved checkpoint of a run.
// Returns ErrNotFound if the run has none.
func Latest(ctx context.Context, store Store, runID string) (*Checkpoint, error) {
	infos, err := store.List(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrNotFound
	}
	data, err := store.Load(ctx, runID, infos[len(infos)-1].NodeID)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
