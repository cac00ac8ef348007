package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of *pgxpool.Pool the store uses.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresOptions configures a PostgresStore.
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "stepgraph_checkpoints"
}

// PostgresStore persists checkpoints in PostgreSQL.
type PostgresStore struct {
	pool      DBPool
	tableName string
	closed    atomic.Bool
}

const defaultPostgresTable = "stepgraph_checkpoints"

// NewPostgresStore opens a connection pool and creates the checkpoint table
// if it does not exist.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	s := NewPostgresStoreWithPool(pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool wraps an existing pool. The schema is not created;
// call InitSchema when needed.
func NewPostgresStoreWithPool(pool DBPool, tableName string) *PostgresStore {
	if tableName == "" {
		tableName = defaultPostgresTable
	}
	return &PostgresStore{pool: pool, tableName: tableName}
}

// InitSchema creates the checkpoint table and its index.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			data BYTEA NOT NULL,
			PRIMARY KEY (run_id, node_id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_sequence ON %s (run_id, sequence);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create checkpoint schema: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, runID, nodeID string, data []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, node_id, sequence, created_at, data)
		VALUES ($1, $2, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM %s WHERE run_id = $1), $3, $4)
		ON CONFLICT (run_id, node_id) DO UPDATE SET
			sequence = EXCLUDED.sequence,
			created_at = EXCLUDED.created_at,
			data = EXCLUDED.data
	`, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query, runID, nodeID, time.Now().UTC(), data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, runID, nodeID string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE run_id = $1 AND node_id = $2`, s.tableName)

	var data []byte
	err := s.pool.QueryRow(ctx, query, runID, nodeID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, runID string) ([]Info, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`
		SELECT node_id, sequence, created_at, octet_length(data)
		FROM %s
		WHERE run_id = $1
		ORDER BY sequence ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		info := Info{RunID: runID}
		if err := rows.Scan(&info.NodeID, &info.Sequence, &info.Timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, runID, nodeID string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1 AND node_id = $2`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID, nodeID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteRun implements Store.
func (s *PostgresStore) DeleteRun(ctx context.Context, runID string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID); err != nil {
		return fmt.Errorf("delete run checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
