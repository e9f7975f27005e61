package session

import (
	"sync"

	"github.com/uell/livelink/pkg/core"
)

// Context holds the broadcast session currently being served, if any.
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	last    *core.Session
}

// NewContext creates a Context with no active session.
func NewContext() *Context {
	return &Context{}
}

// Current returns a copy of the active session.
func (c *Context) Current() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return core.Session{}, false
	}
	return *c.session, true
}

// Last returns a copy of the most recently ended session.
func (c *Context) Last() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return core.Session{}, false
	}
	return *c.last, true
}

// Publish replaces the active session with a copy of s.
func (c *Context) Publish(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &s
}

// End moves the active session to Last.
func (c *Context) End(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.last = &s
}
