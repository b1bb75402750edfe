// Package session stores in-flight ranking wizard sessions between HTTP
// requests. Sessions are disposable: losing one only means the user restarts
// the comparison flow.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/courtside/internal/domain/wizard"
)

// Session store errors.
var (
	// ErrNotFound is returned when a session id is unknown or expired.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps transport failures of a remote store. Callers may
	// retry.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store persists wizard sessions by id.
type Store interface {
	Save(ctx context.Context, s *wizard.Session) error
	Load(ctx context.Context, id string) (*wizard.Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]wizard.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]wizard.Session)}
}

// Save stores a copy of s.
func (m *MemoryStore) Save(ctx context.Context, s *wizard.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(s)
	return nil
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(ctx context.Context, id string) (*wizard.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(&s)
	return &out, nil
}

// Delete drops a session. Unknown ids are ignored.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

// clone copies the slices and search state so callers never share memory
// with the stored value.
func clone(s *wizard.Session) wizard.Session {
	c := *s
	if s.List != nil {
		c.List = append(c.List[:0:0], s.List...)
	}
	if s.Candidates != nil {
		c.Candidates = append(c.Candidates[:0:0], s.Candidates...)
	}
	if s.Search != nil {
		st := *s.Search
		c.Search = &st
	}
	return c
}
