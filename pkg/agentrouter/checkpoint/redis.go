package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore keeps each checkpoint in a hash with a sorted-set index
// ordered by update time. Safe for use by several router processes.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	owned  bool

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default "agentrouter:checkpoint:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL expires checkpoints that haven't been saved for ttl.
// Zero (the default) keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore connects to addr and owns the connection; Close closes it.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	s := NewRedisStoreFromClient(backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), opts...)
	s.owned = true
	return s
}

// NewRedisStoreFromClient wraps an existing client. Close leaves it open.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "agentrouter:checkpoint:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(workflowID string) string {
	return s.prefix + "wf:" + workflowID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, workflowID string, data []byte) error {
	if workflowID == "" {
		return ErrEmptyID
	}
	if s.isClosed() {
		return ErrStoreClosed
	}

	now := time.Now().UTC()
	key := s.key(workflowID)

	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "revision", 1)
		pipe.HSet(ctx, key,
			"data", data,
			"updated_at", now.Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{
			Score:  float64(now.UnixNano()),
			Member: workflowID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, workflowID string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	data, err := s.client.HGet(ctx, s.key(workflowID), "data").Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store. Index entries whose hash expired are pruned.
func (s *RedisStore) List(ctx context.Context) ([]Info, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	infos := make([]Info, 0, len(ids))
	var stale []any
	for _, id := range ids {
		vals, err := s.client.HMGet(ctx, s.key(id), "revision", "updated_at", "data").Result()
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", id, err)
		}
		if vals[0] == nil {
			stale = append(stale, id)
			continue
		}

		info := Info{WorkflowID: id}
		if rev, ok := vals[0].(string); ok {
			info.Revision, _ = strconv.Atoi(rev)
		}
		if ts, ok := vals[1].(string); ok {
			info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		if d, ok := vals[2].(string); ok {
			info.Size = int64(len(d))
		}
		infos = append(infos, info)
	}

	if len(stale) > 0 {
		s.client.ZRem(ctx, s.indexKey(), stale...)
	}

	return infos, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, workflowID string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(workflowID))
	pipe.ZRem(ctx, s.indexKey(), workflowID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		return s.client.Close()
	}
	return nil
}
