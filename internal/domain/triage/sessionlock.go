package triage

import "sync"

// sessionLocks serializes turns per session id. A second concurrent turn for
// the same id fails fast instead of queueing, so a client retrying on a slow
// network cannot interleave two state transitions.
type sessionLocks struct {
	mu     sync.Mutex
	active map[string]bool
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{active: make(map[string]bool)}
}

// acquire reports whether the caller now exclusively owns the session.
func (l *sessionLocks) acquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[id] {
		return false
	}
	l.active[id] = true
	return true
}

func (l *sessionLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}
