// Package bucket implements sliding-window rate limit counters. The memory
// store is the default: the engine runs as a single authoritative process, so
// a local window is correct, not merely best-effort. The Redis store exists
// for deployments that front the engine with multiple chat workers.
package bucket

import (
	"context"
	"sync"
	"time"

	"fundgate/internal/safeguard/models"
)

// MemoryStore implements BucketStore with in-memory sliding windows.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	clock   func() time.Time
}

// slidingWindow tracks request timestamps. Entries older than the window are
// dropped lazily on each access, never by a background timer.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// MemoryOption configures the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// NewMemory creates a new in-memory bucket store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		buckets: make(map[string]*slidingWindow),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow checks if a request is allowed and records its timestamp if so.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	sw := s.getOrCreateBucket(key, window)
	sw.cleanup(now)

	if len(sw.timestamps) >= limit {
		return &models.RateLimitResult{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   sw.timestamps[0].Add(window),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Status reports the live window state for a key without consuming a slot.
// A bucket whose entries have all expired is deleted, reclaiming memory for
// idle identities.
func (s *MemoryStore) Status(_ context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	sw := s.buckets[key]
	if sw != nil {
		sw.cleanup(now)
		if len(sw.timestamps) == 0 {
			delete(s.buckets, key)
			sw = nil
		}
	}
	if sw == nil {
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now,
		}, nil
	}

	remaining := limit - len(sw.timestamps)
	if remaining < 0 {
		remaining = 0
	}
	return &models.RateLimitResult{
		Allowed:   len(sw.timestamps) < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   sw.timestamps[0].Add(sw.window),
	}, nil
}

// cleanup removes expired timestamps from a sliding window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// getOrCreateBucket returns an existing bucket or creates a new one.
// Must be called while holding s.mu.
func (s *MemoryStore) getOrCreateBucket(key string, window time.Duration) *slidingWindow {
	if sw := s.buckets[key]; sw != nil {
		return sw
	}
	sw := &slidingWindow{window: window}
	s.buckets[key] = sw
	return sw
}
