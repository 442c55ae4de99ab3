package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/exitlab/internal/exit"
	"github.com/wonny/exitlab/pkg/redis"
)

// AuxState is the per-position memory the controller carries between updates
type AuxState struct {
	Trail          exit.Trail `json:"trail"`
	BreakevenFired bool       `json:"breakeven_fired"`
}

// StateStore persists AuxState by position id
type StateStore interface {
	Load(ctx context.Context, positionID string) (AuxState, error)
	Save(ctx context.Context, positionID string, state AuxState) error
	Delete(ctx context.Context, positionID string) error
}

// =============================================================================
// Memory store
// =============================================================================

// MemoryStateStore keeps state in process
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]AuxState
}

// NewMemoryStateStore creates an empty in-process store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]AuxState)}
}

// Load returns the zero state for an unknown position
func (s *MemoryStateStore) Load(_ context.Context, positionID string) (AuxState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[positionID], nil
}

// Save replaces the state of a position
func (s *MemoryStateStore) Save(_ context.Context, positionID string, state AuxState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[positionID] = state
	return nil
}

// Delete forgets a position
func (s *MemoryStateStore) Delete(_ context.Context, positionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, positionID)
	return nil
}

// =============================================================================
// Redis store
// =============================================================================

// RedisStateStore keeps state in Redis so a restarted monitor resumes trailing
// from the remembered anchor
type RedisStateStore struct {
	cache *redis.Cache
}

// NewRedisStateStore creates a store under the "live" key prefix
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{cache: redis.NewCache(client, "live")}
}

// Load returns the zero state on a miss
func (s *RedisStateStore) Load(ctx context.Context, positionID string) (AuxState, error) {
	var state AuxState
	if _, err := s.cache.Get(ctx, positionID, &state); err != nil {
		return AuxState{}, fmt.Errorf("load live state %s: %w", positionID, err)
	}
	return state, nil
}

// Save stores the state without expiry
func (s *RedisStateStore) Save(ctx context.Context, positionID string, state AuxState) error {
	if err := s.cache.Set(ctx, positionID, state, 0); err != nil {
		return fmt.Errorf("save live state %s: %w", positionID, err)
	}
	return nil
}

// Delete removes the state of a closed position
func (s *RedisStateStore) Delete(ctx context.Context, positionID string) error {
	return s.cache.Delete(ctx, positionID)
}
