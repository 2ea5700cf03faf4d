package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
)

// InMemory is a volatile SessionMemory storing sessions in a process local
// map. It is safe for concurrent access. Appends run under a single write
// lock, so they are atomic with respect to readers. Stored and returned items
// are copies.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	closed   bool
}

type sessionRecord struct {
	items     []core.Item
	createdAt time.Time
	updatedAt time.Time
}

var _ core.SessionMemory = (*InMemory)(nil)

// NewInMemory constructs an empty in-memory backend.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]*sessionRecord)}
}

// LoadSession returns a copy of the session history, empty when unknown.
func (m *InMemory) LoadSession(_ context.Context, sessionID string) ([]core.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, core.NewStorageError(sessionID, "load", core.ErrMemoryClosed)
	}
	rec, ok := m.sessions[sessionID]
	if !ok {
		return []core.Item{}, nil
	}
	return core.CloneItems(rec.items), nil
}

// AppendToSession adds items to the end of the session, creating it if needed.
func (m *InMemory) AppendToSession(_ context.Context, sessionID string, items []core.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.NewStorageError(sessionID, "append", core.ErrMemoryClosed)
	}
	now := time.Now().UTC()
	rec, ok := m.sessions[sessionID]
	if !ok {
		rec = &sessionRecord{items: []core.Item{}, createdAt: now}
		m.sessions[sessionID] = rec
	}
	rec.items = append(rec.items, core.Renumber(items, len(rec.items))...)
	rec.updatedAt = now
	return nil
}

// SaveSession replaces the stored history of the session.
func (m *InMemory) SaveSession(_ context.Context, sessionID string, items []core.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.NewStorageError(sessionID, "save", core.ErrMemoryClosed)
	}
	now := time.Now().UTC()
	rec, ok := m.sessions[sessionID]
	if !ok {
		rec = &sessionRecord{createdAt: now}
		m.sessions[sessionID] = rec
	}
	rec.items = core.Renumber(items, 0)
	if rec.items == nil {
		rec.items = []core.Item{}
	}
	rec.updatedAt = now
	return nil
}

// ClearSession removes the session. Unknown ids are ignored.
func (m *InMemory) ClearSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.NewStorageError(sessionID, "clear", core.ErrMemoryClosed)
	}
	delete(m.sessions, sessionID)
	return nil
}

// ListSessions returns all session ids, most recently updated first.
func (m *InMemory) ListSessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, core.NewStorageError("", "list", core.ErrMemoryClosed)
	}
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.sessions[ids[i]], m.sessions[ids[j]]
		if !a.updatedAt.Equal(b.updatedAt) {
			return a.updatedAt.After(b.updatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

// SessionExists reports whether the session is stored.
func (m *InMemory) SessionExists(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, core.NewStorageError(sessionID, "exists", core.ErrMemoryClosed)
	}
	_, ok := m.sessions[sessionID]
	return ok, nil
}

// Cleanup drops all sessions and marks the backend closed. It is idempotent.
func (m *InMemory) Cleanup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = map[string]*sessionRecord{}
	return nil
}
