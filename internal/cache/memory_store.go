package cache

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore implements Store with a bounded in-process LRU.
// Eviction only ever drops entries, so it never serves stale data.
type MemoryStore struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryStore creates a store holding at most maxEntries values.
func NewMemoryStore(maxEntries int) (*MemoryStore, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	entries, err := lru.New[string, memoryEntry](maxEntries)
	if err != nil {
		return nil, err
	}

	return &MemoryStore{entries: entries, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, false, nil
	}

	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.entries.Remove(key)
		return nil, false, nil
	}

	// Callers must not be able to mutate what is stored.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.entries.Add(key, entry)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.entries.Remove(key)
	}
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	for _, key := range s.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.entries.Remove(key)
		}
	}
	return nil
}

// Len reports the number of stored entries, including expired ones not yet collected.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}
