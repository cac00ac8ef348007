package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key. Default "stepgraph:".
	Prefix string
	// TTL expires a run's checkpoints after the last save. 0 keeps them forever.
	TTL time.Duration
}

// RedisStore persists checkpoints in Redis.
//
// Each run uses four keys: a sequence counter, a hash of node -> checkpoint
// bytes, a hash of node -> save time, and a sorted set ordering nodes by
// sequence.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore connects to Redis with the given options.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreWithClient(client, opts.Prefix, opts.TTL)
}

// NewRedisStoreWithClient wraps an existing client. The store owns the client
// and closes it on Close.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "stepgraph:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(runID, part string) string {
	return fmt.Sprintf("%srun:%s:%s", s.prefix, runID, part)
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, runID, nodeID string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	seq, err := s.client.Incr(ctx, s.key(runID, "seq")).Result()
	if err != nil {
		return fmt.Errorf("save checkpoint: next sequence: %w", err)
	}

	keys := []string{s.key(runID, "seq"), s.key(runID, "data"), s.key(runID, "ts"), s.key(runID, "order")}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, keys[1], nodeID, data)
		pipe.HSet(ctx, keys[2], nodeID, time.Now().UTC().Format(time.RFC3339Nano))
		pipe.ZAdd(ctx, keys[3], redis.Z{Score: float64(seq), Member: nodeID})
		if s.ttl > 0 {
			for _, k := range keys {
				pipe.Expire(ctx, k, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, runID, nodeID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := s.client.HGet(ctx, s.key(runID, "data"), nodeID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	members, err := s.client.ZRangeWithScores(ctx, s.key(runID, "order"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(members) == 0 {
		return []Info{}, nil
	}

	nodes := make([]string, len(members))
	for i, m := range members {
		nodes[i], _ = m.Member.(string)
	}

	var sizes []*redis.IntCmd
	var stamps *redis.SliceCmd
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, node := range nodes {
			sizes = append(sizes, pipe.HStrLen(ctx, s.key(runID, "data"), node))
		}
		stamps = pipe.HMGet(ctx, s.key(runID, "ts"), nodes...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	times := stamps.Val()
	infos := make([]Info, 0, len(nodes))
	for i, node := range nodes {
		info := Info{
			RunID:    runID,
			NodeID:   node,
			Sequence: int(members[i].Score),
			Size:     sizes[i].Val(),
		}
		if i < len(times) {
			if ts, ok := times[i].(string); ok {
				info.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, runID, nodeID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.key(runID, "data"), nodeID)
		pipe.HDel(ctx, s.key(runID, "ts"), nodeID)
		pipe.ZRem(ctx, s.key(runID, "order"), nodeID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteRun implements Store.
func (s *RedisStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	err := s.client.Del(ctx,
		s.key(runID, "seq"),
		s.key(runID, "data"),
		s.key(runID, "ts"),
		s.key(runID, "order"),
	).Err()
	if err != nil {
		return fmt.Errorf("delete run checkpoints: %w", err)
	}
	return nil
}

// Close implements Store. Closing twice is a no-op.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// String identifies the store in logs.
func (s *RedisStore) String() string {
	return "redis(" + strconv.Quote(s.prefix) + ")"
}

var _ Store = (*RedisStore)(nil)
