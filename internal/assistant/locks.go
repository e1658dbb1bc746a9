package assistant

import "sync"

// lockManager serializes request handling per session id. Requests for
// the same session queue behind the in-flight transition; different
// sessions proceed in parallel. Entries are reference counted so the
// map does not grow with every session ever seen.
type lockManager struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockManager() *lockManager {
	return &lockManager{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the session lock is held and returns the release
// function.
func (m *lockManager) acquire(sessionID string) func() {
	m.mu.Lock()
	entry, ok := m.entries[sessionID]
	if !ok {
		entry = &lockEntry{}
		m.entries[sessionID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		m.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(m.entries, sessionID)
		}
		m.mu.Unlock()
	}
}
