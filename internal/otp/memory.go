package otp

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is a process-local Store for single-instance deployments and
// tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]entry), now: time.Now}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID int64, code string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok && s.now().Before(e.expiresAt) {
		return e.code, nil
	}
	s.entries[userID] = entry{code: code, expiresAt: s.now().Add(ttl)}
	return code, nil
}

func (s *MemoryStore) Consume(ctx context.Context, userID int64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, userID)
		return false, nil
	}
	if e.code != code {
		return false, nil
	}
	delete(s.entries, userID)
	return true, nil
}
