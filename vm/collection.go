// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import (
	"sync"

	"github.com/google/uuid"
)

// Collection is the "interpreter collection manager" of spec §5: "a global
// interpreter collection manager provides an atomic, versioned snapshot of
// the active connection set so the driver can iterate without tearing while
// connections are added/removed." Snapshot returns the live session set as
// of some version; Add/Remove bump the version so a driver loop can detect
// (if it cares to) that the set changed underneath it.
type Collection struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	version  uint64
}

func NewCollection() *Collection {
	return &Collection{sessions: map[uuid.UUID]*Session{}}
}

// Add registers a session and returns the new version.
func (c *Collection) Add(s *Session) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = s
	c.version++
	return c.version
}

// Remove unregisters a session and returns the new version.
func (c *Collection) Remove(id uuid.UUID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
	c.version++
	return c.version
}

// Snapshot returns every currently-registered session and the version it
// was taken at. The returned slice is a fresh copy, safe to range over while
// Add/Remove run concurrently.
func (c *Collection) Snapshot() (sessions []*Session, version uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sessions = make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	return sessions, c.version
}

// Len reports the current session count.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
