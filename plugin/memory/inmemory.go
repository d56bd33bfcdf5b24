package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps session histories in process memory. It is the
// default Store when no external session store is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionHistory
}

type sessionHistory struct {
	entries    []Entry // oldest first
	lastActive time.Time
}

// NewInMemoryStore creates an empty in-process store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*sessionHistory)}
}

// Append implements Store.
func (s *InMemoryStore) Append(_ context.Context, sessionID string, e Entry, depth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[sessionID]
	if !ok {
		h = &sessionHistory{}
		s.sessions[sessionID] = h
	}
	h.entries = append(h.entries, e)
	if len(h.entries) > depth {
		h.entries = h.entries[len(h.entries)-depth:]
	}
	h.lastActive = e.RecordedAt
	return nil
}

// List implements Store, returning entries most recent first.
func (s *InMemoryStore) List(_ context.Context, sessionID string, depth int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	n := len(h.entries)
	if n > depth {
		n = depth
	}
	out := make([]Entry, 0, n)
	for i := len(h.entries) - 1; i >= len(h.entries)-n; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

// DeleteExpired implements Store.
func (s *InMemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, h := range s.sessions {
		if h.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*InMemoryStore)(nil)
