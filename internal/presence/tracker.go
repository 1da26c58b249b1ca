package presence

import (
	"slices"
	"sync"
)

// Tracker maps live session identifiers to player names. It is rebuilt from
// join events and is never persisted.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewTracker() *Tracker {
	return &Tracker{sessions: map[string]string{}}
}

// Join records that session belongs to name, replacing any stale mapping.
func (t *Tracker) Join(session, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[session] = name
}

// Leave removes the session and returns the name it was mapped to.
func (t *Tracker) Leave(session string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	name, ok := t.sessions[session]
	if !ok {
		return "", false
	}
	delete(t.sessions, session)
	return name, true
}

// IsOnline reports whether any live session maps to name.
func (t *Tracker) IsOnline(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, n := range t.sessions {
		if n == name {
			return true
		}
	}
	return false
}

// Online returns the sorted, de-duplicated names of every online player.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.sessions))
	for _, n := range t.sessions {
		names = append(names, n)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Count returns the number of live sessions.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.sessions)
}

// Reset forgets every session, used when the game connection is re-established.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions = map[string]string{}
}
