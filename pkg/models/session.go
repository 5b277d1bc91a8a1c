// Package models holds the data types shared by the bridge, the session
// registry and the daemon API.
package models

import (
	"encoding/json"
	"time"
)

// RegistryVersion is the current threads.json format version.
const RegistryVersion = 1

// SessionStatus tracks whether a session's transcript is still on disk.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionMissing SessionStatus = "missing"
)

// SessionEntry is the persisted record of one agent work session.
type SessionEntry struct {
	SessionID      string        `json:"sessionId"`
	Cwd            string        `json:"cwd"`
	Preview        *string       `json:"preview"`
	CreatedAt      int64         `json:"createdAt"`
	LastActivity   int64         `json:"lastActivity"`
	TranscriptPath *string       `json:"transcriptPath"`
	ProjectPath    *string       `json:"projectPath"`
	Status         SessionStatus `json:"status"`
}

// UnmarshalJSON defaults Status to active for records written without one.
func (s *SessionEntry) UnmarshalJSON(data []byte) error {
	type plain SessionEntry
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Status == "" {
		raw.Status = SessionActive
	}
	*s = SessionEntry(raw)
	return nil
}

// WorkspaceRegistry is the per-workspace visibility record.
type WorkspaceRegistry struct {
	ProjectPath       *string  `json:"projectPath"`
	VisibleSessionIDs []string `json:"visibleSessionIds"`
}

// IsVisible reports whether id is in the visible list.
func (w *WorkspaceRegistry) IsVisible(id string) bool {
	for _, v := range w.VisibleSessionIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Show appends id to the visible list unless it is already there. It
// returns true if the list changed.
func (w *WorkspaceRegistry) Show(id string) bool {
	if w.IsVisible(id) {
		return false
	}
	w.VisibleSessionIDs = append(w.VisibleSessionIDs, id)
	return true
}

// Hide removes id from the visible list. It returns true if the list changed.
func (w *WorkspaceRegistry) Hide(id string) bool {
	kept := w.VisibleSessionIDs[:0]
	removed := false
	for _, v := range w.VisibleSessionIDs {
		if v == id {
			removed = true
			continue
		}
		kept = append(kept, v)
	}
	w.VisibleSessionIDs = kept
	return removed
}

// ThreadRegistry is the root aggregate persisted to threads.json.
type ThreadRegistry struct {
	Version    int                           `json:"version"`
	Workspaces map[string]*WorkspaceRegistry `json:"workspaces"`
	Sessions   map[string]*SessionEntry      `json:"sessions"`
}

// NewThreadRegistry returns an empty registry at the current version.
func NewThreadRegistry() *ThreadRegistry {
	return &ThreadRegistry{
		Version:    RegistryVersion,
		Workspaces: make(map[string]*WorkspaceRegistry),
		Sessions:   make(map[string]*SessionEntry),
	}
}

// UnmarshalJSON fills in defaults for fields missing from older files.
func (r *ThreadRegistry) UnmarshalJSON(data []byte) error {
	type plain ThreadRegistry
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Version == 0 {
		raw.Version = RegistryVersion
	}
	if raw.Workspaces == nil {
		raw.Workspaces = make(map[string]*WorkspaceRegistry)
	}
	for id, ws := range raw.Workspaces {
		if ws == nil {
			ws = &WorkspaceRegistry{}
			raw.Workspaces[id] = ws
		}
		if ws.VisibleSessionIDs == nil {
			ws.VisibleSessionIDs = []string{}
		}
	}
	if raw.Sessions == nil {
		raw.Sessions = make(map[string]*SessionEntry)
	}
	*r = ThreadRegistry(raw)
	return nil
}

// Workspace returns the record for id, creating it if needed.
func (r *ThreadRegistry) Workspace(id string) *WorkspaceRegistry {
	ws, ok := r.Workspaces[id]
	if !ok || ws == nil {
		ws = &WorkspaceRegistry{VisibleSessionIDs: []string{}}
		r.Workspaces[id] = ws
	}
	return ws
}

// NowMillis returns the current time in milliseconds since the epoch.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
