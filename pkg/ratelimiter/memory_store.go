package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// staleCount is the decayed value under which a counter is forgotten.
const staleCount = 0.01

// counter represents a decaying counter state.
type counter struct {
	value    float64
	updated  time.Time
	halfLife time.Duration
}

// MemoryStore implements Store interface using in-memory storage.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the cleanup interval for removing decayed counters.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store with optional cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		counters:        make(map[string]*counter),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}

	return ms
}

// Hit decays the key's counter to now and adds one.
func (ms *MemoryStore) Hit(ctx context.Context, key string, config Config) (float64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	c, exists := ms.counters[key]
	if !exists {
		c = &counter{updated: now}
		ms.counters[key] = c
	}

	c.value = decay(c.value, now.Sub(c.updated), config.HalfLife) + 1
	c.updated = now
	c.halfLife = config.HalfLife

	return c.value, nil
}

// Count returns the decayed counter for key without registering a hit.
func (ms *MemoryStore) Count(key string) float64 {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	c, ok := ms.counters[key]
	if !ok {
		return 0
	}
	return decay(c.value, ms.now().Sub(c.updated), c.halfLife)
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.counters, key)
	return nil
}

func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeStale()
		case <-ms.stopCleanup:
			return
		}
	}
}

// removeStale drops counters that decayed to practically zero.
func (ms *MemoryStore) removeStale() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for key, c := range ms.counters {
		if decay(c.value, now.Sub(c.updated), c.halfLife) < staleCount {
			delete(ms.counters, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	select {
	case <-ms.stopCleanup:
	default:
		close(ms.stopCleanup)
	}
}
