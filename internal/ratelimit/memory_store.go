// memory_store.go - in-process Store for single-instance deployments and tests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	count   int64
	expires time.Time // zero: no expiry
}

// MemoryStore is a mutex-guarded map of counters with expiry.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]*memEntry
	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*memEntry), now: time.Now}
}

func (s *MemoryStore) live(key string) *memEntry {
	e, ok := s.m[key]
	if !ok {
		return nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, key)
		return nil
	}
	return e
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		e = &memEntry{}
		s.m[key] = e
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		e.expires = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return -2 * time.Second, nil
	}
	if e.expires.IsZero() {
		return -1 * time.Second, nil
	}
	return e.expires.Sub(s.now()), nil
}
