package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore is the storage backend for window counters and blocks.
// Increment must be atomic per key: concurrent callers observe strictly
// increasing counts, so exactly Points calls succeed before the first denial.
type CounterStore interface {
	// Increment adds one to the counter at key and returns the new count.
	// The counter expires after ttl.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the current count at key, zero if absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// Reset drops the counter at key. Called when a block is armed so the
	// identifier starts from a clean window once the block lapses.
	Reset(ctx context.Context, key string) error

	// SetBlock records a lockout for key lasting until the given time.
	SetBlock(ctx context.Context, key string, until time.Time) error

	// GetBlock returns the lockout deadline for key, zero time if none.
	GetBlock(ctx context.Context, key string) (time.Time, error)
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is the in-process CounterStore. Single-instance deployments
// use it directly; multi-instance deployments should use RedisStore so all
// instances share one counter space.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	blocks   map[string]time.Time
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		blocks:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Increment implements CounterStore.
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Get implements CounterStore.
func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || s.now().After(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}

// Reset implements CounterStore.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

// SetBlock implements CounterStore.
func (s *MemoryStore) SetBlock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[key] = until
	return nil
}

// GetBlock implements CounterStore.
func (s *MemoryStore) GetBlock(_ context.Context, key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[key]
	if !ok {
		return time.Time{}, nil
	}
	if s.now().After(until) {
		delete(s.blocks, key)
		return time.Time{}, nil
	}
	return until, nil
}

// Cleanup drops expired counters and blocks. Called by the scheduler;
// correctness does not depend on it, only memory usage does.
func (s *MemoryStore) Cleanup(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, c := range s.counters {
		if now.After(c.expiresAt) {
			delete(s.counters, key)
			removed++
		}
	}
	for key, until := range s.blocks {
		if now.After(until) {
			delete(s.blocks, key)
			removed++
		}
	}
	return removed
}
