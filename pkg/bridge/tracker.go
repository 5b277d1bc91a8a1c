package bridge

import (
	"sort"
	"sync"

	"github.com/grovetools/claudemon/pkg/models"
)

// Tracker remembers the sessions the bridge has started during this run.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]models.TrackedSession
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]models.TrackedSession)}
}

// Track records or replaces a session.
func (t *Tracker) Track(s models.TrackedSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.SessionID] = s
}

// Remove forgets a session.
func (t *Tracker) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Get returns one tracked session.
func (t *Tracker) Get(sessionID string) (models.TrackedSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sessionID]
	return s, ok
}

// Any returns the earliest started tracked session, if there is one.
func (t *Tracker) Any() (models.TrackedSession, bool) {
	list := t.List()
	if len(list) == 0 {
		return models.TrackedSession{}, false
	}
	return list[0], true
}

// List returns tracked sessions ordered by start time.
func (t *Tracker) List() []models.TrackedSession {
	t.mu.Lock()
	out := make([]models.TrackedSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt < out[j].StartedAt
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Clear forgets every session.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = make(map[string]models.TrackedSession)
}
