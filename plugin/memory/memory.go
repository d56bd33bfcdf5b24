// Package memory holds the bounded per-session history of completed
// scheduling actions and resolves deictic references against it.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Kash6/SchedulingAgent/internal/errors"
	"github.com/Kash6/SchedulingAgent/plugin/intent"
)

// DefaultDepth is the bounded history depth per session.
const DefaultDepth = 20

// DefaultTTL is the session expiry since last activity.
const DefaultTTL = 30 * time.Minute

// Entry records one completed action. Entries are append-only; they are
// never mutated, only appended and evicted.
type Entry struct {
	EventID    string        `json:"event_id"`
	Action     intent.Action `json:"action"`
	Attendees  []string      `json:"attendees"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Store is the session history persistence contract: per-session ordered
// append plus bounded-depth read, with expiry.
type Store interface {
	// Append adds an entry to the session history, evicting the oldest
	// entries beyond depth.
	Append(ctx context.Context, sessionID string, e Entry, depth int) error
	// List returns the session history, most recent first, up to depth.
	List(ctx context.Context, sessionID string, depth int) ([]Entry, error)
	// DeleteExpired removes sessions with no activity since cutoff and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Memory is the conversational context memory. Sessions are isolated;
// a per-session mutex serializes record/resolve within one session
// without a global serialization point.
type Memory struct {
	store Store
	depth int
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is a per-session mutex with a reference count so idle locks
// can be pruned without racing an in-flight request.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Memory.
type Option func(*Memory)

// WithDepth overrides the bounded history depth.
func WithDepth(n int) Option {
	return func(m *Memory) { m.depth = n }
}

// WithTTL overrides the session expiry.
func WithTTL(d time.Duration) Option {
	return func(m *Memory) { m.ttl = d }
}

// WithNow injects the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// New creates a Memory backed by the given store. A nil store defaults to
// the in-process store.
func New(store Store, opts ...Option) *Memory {
	if store == nil {
		store = NewInMemoryStore()
	}
	m := &Memory{
		store: store,
		depth: DefaultDepth,
		ttl:   DefaultTTL,
		now:   time.Now,
		locks: make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LockSession acquires the per-session serialization lock and returns the
// unlock function. Requests for the same session must not interleave their
// record/resolve calls; unrelated sessions proceed in parallel.
func (m *Memory) LockSession(sessionID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		m.locks[sessionID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.mu.Lock()
		lock.refs--
		m.mu.Unlock()
	}
}

// Record appends a completed action to the session history.
func (m *Memory) Record(ctx context.Context, sessionID string, action intent.Action, eventID string, attendees []string) error {
	return m.store.Append(ctx, sessionID, Entry{
		EventID:    eventID,
		Action:     action,
		Attendees:  attendees,
		RecordedAt: m.now(),
	}, m.depth)
}

// ResolveReference upgrades a deictic event reference to a concrete event
// identifier by searching the session history most-recent-first for the
// first entry matching the marker's implied prior action. Intents without
// a deictic reference pass through unchanged.
func (m *Memory) ResolveReference(ctx context.Context, in *intent.Intent, sessionID string) (*intent.Intent, error) {
	if in.EventRef.Kind != intent.RefDeictic {
		return in, nil
	}

	entries, err := m.store.List(ctx, sessionID, m.depth)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Action != in.EventRef.PriorAction {
			continue
		}
		resolved := *in
		resolved.EventRef = intent.EventReference{
			Kind:        intent.RefExplicitID,
			ID:          e.EventID,
			PriorAction: in.EventRef.PriorAction,
		}
		return &resolved, nil
	}

	return nil, errors.NoMatchingPriorEvent()
}

// StartJanitor runs session expiry on the given interval until ctx is done.
func (m *Memory) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireOnce(ctx)
			}
		}
	}()
}

func (m *Memory) expireOnce(ctx context.Context) {
	cutoff := m.now().Add(-m.ttl)
	if _, err := m.store.DeleteExpired(ctx, cutoff); err == nil {
		m.pruneLocks()
	}
}

// pruneLocks drops session locks with no in-flight or waiting requests so
// the lock map stays bounded by live sessions.
func (m *Memory) pruneLocks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, lock := range m.locks {
		if lock.refs == 0 {
			delete(m.locks, id)
		}
	}
}
