/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package chatsvc

import (
	"sync"

	"querychat/internal/database"
	"querychat/internal/llm"
)

// Session is one conversation with its accumulated message history and
// the most recent query outcome. mu serializes conversation turns: the
// engine holds it for a whole turn, so concurrent requests against the
// same session queue up instead of interleaving their history writes.
type Session struct {
	ID string

	mu         sync.Mutex
	Messages   []llm.Message
	LastSQL    string
	LastResult *database.Result
}

// Last returns the most recent executed SQL and its result
func (s *Session) Last() (string, *database.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastSQL, s.LastResult
}

// Store holds sessions keyed by ID. All methods are safe for concurrent
// use; the store lock guards the map only, each Session guards its own
// turn state.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with the given ID, if it exists
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

// GetOrCreate returns the session with the given ID, creating it first
// if needed. Concurrent callers with the same ID get the same session.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &Session{ID: id}
	s.sessions[id] = sess
	return sess
}

// Clear removes the session with the given ID and reports whether it
// existed.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
