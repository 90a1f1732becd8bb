// Package sessions keeps the per-client browsing and editing state served by
// the HTTP API.
package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/composition"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/pager"
)

// Session is one client's catalog cursor and composition.
type Session struct {
	ID        string
	Pager     *pager.Pager
	Editor    *composition.Editor
	CreatedAt time.Time
}

// Store is an in-memory session registry.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	source   pager.Source
	pageSize int
}

// New creates a store whose sessions page through source.
func New(source pager.Source, pageSize int) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		source:   source,
		pageSize: pageSize,
	}
}

// Create starts a session with a fresh pager and an empty composition.
func (s *Store) Create() *Session {
	session := &Session{
		ID:        uuid.NewString(),
		Pager:     pager.New(s.source, s.pageSize),
		Editor:    composition.NewEditor(),
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session
}

func (s *Store) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *Store) GetAll() map[string]*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*Session, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Expire drops sessions created before cutoff and returns how many it removed.
func (s *Store) Expire(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, session := range s.sessions {
		if session.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
