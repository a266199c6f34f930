package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process Store, used when no cache path is configured
// and throughout the tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[entry.Fingerprint]; ok {
		if SameContent(existing.Record, entry.Record) {
			return nil
		}
		return conflictError(entry.Fingerprint)
	}

	entry.WrittenAt = stampWrittenAt(entry.WrittenAt)
	s.entries[entry.Fingerprint] = entry
	return nil
}

func (s *MemoryStore) ForcePut(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.WrittenAt = stampWrittenAt(entry.WrittenAt)
	s.entries[entry.Fingerprint] = entry
	return nil
}

func (s *MemoryStore) All(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func stampWrittenAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
