package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	deepagent "github.com/yukot/deepagent"
	"github.com/yukot/deepagent/redisclient"
)

// ThreadState is the last completed result for a conversation thread.
type ThreadState struct {
	ThreadID  string                `json:"thread_id"`
	Result    deepagent.AgentResult `json:"result"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ThreadStore persists per-thread results between facade calls.
type ThreadStore interface {
	Save(ctx context.Context, state ThreadState) error
	Load(ctx context.Context, threadID string) (ThreadState, bool, error)
}

// --- Redis-backed store ---

// DefaultThreadTTL bounds how long thread state survives without activity.
const DefaultThreadTTL = 24 * time.Hour

// RedisThreadStore keeps thread state in Redis with a sliding TTL.
type RedisThreadStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisThreadStore creates a store over the given client. A zero ttl
// uses DefaultThreadTTL.
func NewRedisThreadStore(client *redisclient.Client, ttl time.Duration) *RedisThreadStore {
	if ttl == 0 {
		ttl = DefaultThreadTTL
	}
	return &RedisThreadStore{client: client, ttl: ttl}
}

// Save persists the thread state and registers the id in the thread index
// in one round trip.
func (s *RedisThreadStore) Save(ctx context.Context, state ThreadState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("threads: encode %s: %w", state.ThreadID, err)
	}
	err = s.client.Pipeline(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisclient.ThreadKey(state.ThreadID), string(data), s.ttl)
		pipe.SAdd(ctx, redisclient.ThreadIndexKey, state.ThreadID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("threads: save %s: %w", state.ThreadID, err)
	}
	return nil
}

// ThreadIDs returns the ids of all threads ever saved. Index entries may
// outlive their expired state keys.
func (s *RedisThreadStore) ThreadIDs(ctx context.Context) ([]string, error) {
	return s.client.Raw().SMembers(ctx, redisclient.ThreadIndexKey).Result()
}

func (s *RedisThreadStore) Load(ctx context.Context, threadID string) (ThreadState, bool, error) {
	raw, ok := s.client.Get(ctx, redisclient.ThreadKey(threadID))
	if !ok {
		return ThreadState{}, false, nil
	}
	var state ThreadState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return ThreadState{}, false, fmt.Errorf("threads: decode %s: %w", threadID, err)
	}
	return state, true, nil
}

// --- In-memory store ---

// MemoryThreadStore is a process-local ThreadStore for tests and
// single-instance deployments without Redis.
type MemoryThreadStore struct {
	mu     sync.RWMutex
	states map[string]ThreadState
}

// NewMemoryThreadStore creates an empty in-memory store.
func NewMemoryThreadStore() *MemoryThreadStore {
	return &MemoryThreadStore{states: make(map[string]ThreadState)}
}

func (s *MemoryThreadStore) Save(_ context.Context, state ThreadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ThreadID] = state
	return nil
}

func (s *MemoryThreadStore) Load(_ context.Context, threadID string) (ThreadState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[threadID]
	return state, ok, nil
}
