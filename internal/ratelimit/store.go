package ratelimit

import (
	"context"
	"strings"
	"sync"
)

// Store persists limiter entries. Update must be atomic per key: fn sees the
// current entry (nil when absent) and its result replaces it; nil deletes.
type Store interface {
	Update(ctx context.Context, key string, fn func(cur *Entry) *Entry) error
	Delete(ctx context.Context, key string) error
	// Sweep deletes entries under prefix for which drop returns true.
	Sweep(ctx context.Context, prefix string, drop func(Entry) bool) (int, error)
}

// MemoryStore keeps entries in process memory. Limits are per instance and
// lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn func(cur *Entry) *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *Entry
	if e, ok := s.entries[key]; ok {
		cur = &e
	}

	next := fn(cur)
	if next == nil {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = *next
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Sweep(ctx context.Context, prefix string, drop func(Entry) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) && drop(e) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// Len is the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
