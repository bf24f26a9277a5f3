// Package session tracks the live association between a connection, an
// authenticated user, and an active character.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session is a point-in-time snapshot of one connection's state. A zero
// UserID or CharacterID means that slot is unattached. Snapshots are
// values; mutating one has no effect on the registry.
type Session struct {
	Conn        uuid.UUID
	UserID      int64
	CharacterID int64
}

// Registry is a multi-key index of live sessions: by connection, by user
// and by character. Every mutation maintains all three indexes together,
// so a session is reachable under all of its non-zero keys or not at all.
type Registry struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]*Session
	byUser map[int64]uuid.UUID
	byChar map[int64]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: map[uuid.UUID]*Session{},
		byUser: map[int64]uuid.UUID{},
		byChar: map[int64]uuid.UUID{},
	}
}

// AddConnection creates an empty session for a new connection.
func (r *Registry) AddConnection(conn uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byConn[conn] = &Session{Conn: conn}
}

// AttachUser binds an authenticated user to the session. Any previous
// user key for this session is dropped in the same step.
func (r *Registry) AttachUser(conn uuid.UUID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[conn]
	if !ok {
		return fmt.Errorf("no session for connection %s", conn)
	}
	if other, ok := r.byUser[userID]; ok && other != conn {
		return fmt.Errorf("user %d is attached to another session", userID)
	}

	if s.UserID != 0 {
		delete(r.byUser, s.UserID)
	}
	s.UserID = userID
	r.byUser[userID] = conn
	return nil
}

// AttachCharacter binds an active character to the session. Any previous
// character key for this session is dropped in the same step.
func (r *Registry) AttachCharacter(conn uuid.UUID, charID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[conn]
	if !ok {
		return fmt.Errorf("no session for connection %s", conn)
	}
	if other, ok := r.byChar[charID]; ok && other != conn {
		return fmt.Errorf("character %d is attached to another session", charID)
	}

	if s.CharacterID != 0 {
		delete(r.byChar, s.CharacterID)
	}
	s.CharacterID = charID
	r.byChar[charID] = conn
	return nil
}

// DetachCharacter clears the session's character slot and its index key.
func (r *Registry) DetachCharacter(conn uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[conn]
	if !ok || s.CharacterID == 0 {
		return
	}
	delete(r.byChar, s.CharacterID)
	s.CharacterID = 0
}

// ByConn returns the session for a connection, if any.
func (r *Registry) ByConn(conn uuid.UUID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byConn[conn]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ByUser returns the session holding the given user, if any.
func (r *Registry) ByUser(userID int64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byUser[userID]
	if !ok {
		return Session{}, false
	}
	return *r.byConn[conn], true
}

// ByCharacter returns the session holding the given character, if any.
func (r *Registry) ByCharacter(charID int64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byChar[charID]
	if !ok {
		return Session{}, false
	}
	return *r.byConn[conn], true
}

// Remove deletes the session under every key it is registered with and
// returns the final snapshot.
func (r *Registry) Remove(conn uuid.UUID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[conn]
	if !ok {
		return Session{}, false
	}

	if s.UserID != 0 {
		delete(r.byUser, s.UserID)
	}
	if s.CharacterID != 0 {
		delete(r.byChar, s.CharacterID)
	}
	delete(r.byConn, conn)
	return *s, true
}
