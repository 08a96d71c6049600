package tracker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"learnloop-backend/internal/store"
)

// Manager hands out one Tracker per client context so two tabs of the same
// user never share session state, only the store underneath.
type Manager struct {
	store store.AggregateStore
	opts  []Option

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewManager(st store.AggregateStore, opts ...Option) *Manager {
	return &Manager{
		store:    st,
		opts:     opts,
		trackers: make(map[string]*Tracker),
	}
}

func contextKey(userID uuid.UUID, clientID string) string {
	return userID.String() + ":" + clientID
}

// For returns the tracker for a (user, client) context, creating it on first
// use.
func (m *Manager) For(userID uuid.UUID, clientID string) *Tracker {
	key := contextKey(userID, clientID)

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[key]
	if !ok {
		t = New(m.store, m.opts...)
		m.trackers[key] = t
	}
	return t
}

// Release stops tracking for a context and forgets its tracker.
func (m *Manager) Release(ctx context.Context, userID uuid.UUID, clientID string) FlushResult {
	key := contextKey(userID, clientID)

	m.mu.Lock()
	t, ok := m.trackers[key]
	if ok {
		delete(m.trackers, key)
	}
	m.mu.Unlock()

	if !ok {
		return FlushResult{}
	}
	return t.StopTracking(ctx)
}

// StopAll flushes every active session, for graceful shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		trackers = append(trackers, t)
	}
	m.trackers = make(map[string]*Tracker)
	m.mu.Unlock()

	for _, t := range trackers {
		t.StopTracking(ctx)
	}
}
