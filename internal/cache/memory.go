package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	board     Board
	expiresAt time.Time
}

// MemoryStore is an in-process Store used for local runs and tests. Expired
// entries are treated as misses on read, matching Redis TTL behavior.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

// SetClock overrides the expiry clock; tests use it to force expiry.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) Get(_ context.Context, key Key) (*Board, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key.String())
		s.mu.Unlock()
		return nil, false, nil
	}
	board := e.board
	return &board, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, board *Board, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key.String()] = memoryEntry{
		board:     *board,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	return nil
}

// Len reports the live entry count, for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
