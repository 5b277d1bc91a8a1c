// Package registry maintains the durable catalog of agent sessions
// (threads.json) and the per-workspace visible/archived split.
package registry

import (
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/sessions"
)

// Registry is the single in-process owner of the thread registry. Every
// operation runs under one mutex and re-persists the whole aggregate after
// it changes state. In-memory state stays updated when a save fails.
type Registry struct {
	mu         sync.Mutex
	store      Store
	state      *models.ThreadRegistry
	claudeHome string
	exists     func(path string) bool
	logger     *logrus.Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithClaudeHome sets the root used to derive transcript paths.
func WithClaudeHome(dir string) Option {
	return func(r *Registry) { r.claudeHome = dir }
}

// WithExistsFunc replaces the transcript existence check.
func WithExistsFunc(fn func(path string) bool) Option {
	return func(r *Registry) { r.exists = fn }
}

// New loads the registry from store.
func New(store Store, opts ...Option) (*Registry, error) {
	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	r := &Registry{
		store:  store,
		state:  state,
		exists: fileExists,
		logger: logging.NewLogger("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Open loads the registry stored at path.
func Open(path string, opts ...Option) (*Registry, error) {
	return New(NewFileStore(path), opts...)
}

// Path returns where the registry is persisted.
func (r *Registry) Path() string {
	return r.store.Path()
}

// ClaudeHome returns the root used to derive transcript paths.
func (r *Registry) ClaudeHome() string {
	return r.claudeHome
}

// Register inserts or overwrites a session and makes it visible in the
// workspace.
func (r *Registry) Register(workspaceID string, entry models.SessionEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.putLocked(entry)
	r.state.Workspace(workspaceID).Show(entry.SessionID)
	return r.saveLocked()
}

// UpdateActivity bumps a session's lastActivity and, when preview is
// non-nil, replaces its preview. Unknown sessions are left alone.
func (r *Registry) UpdateActivity(sessionID string, preview *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.state.Sessions[sessionID]; ok && session != nil {
		session.LastActivity = models.NowMillis()
		if preview != nil {
			p := *preview
			session.Preview = &p
		}
	}
	return r.saveLocked()
}

// Archive hides a session from the workspace. The session record is kept.
func (r *Registry) Archive(workspaceID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.state.Workspaces[workspaceID]; ok && ws != nil {
		ws.Hide(sessionID)
	}
	return r.saveLocked()
}

// Unarchive makes a known session visible in the workspace again.
func (r *Registry) Unarchive(workspaceID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.Sessions[sessionID]; !ok {
		return errors.SessionNotFound(sessionID)
	}
	r.state.Workspace(workspaceID).Show(sessionID)
	return r.saveLocked()
}

// ListVisible returns the workspace's visible sessions in display order.
// Active sessions whose transcript has disappeared are flipped to missing
// and the registry is persisted if anything changed. Visible ids without a
// session record are skipped.
func (r *Registry) ListVisible(workspaceID string) ([]models.SessionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.state.Workspaces[workspaceID]
	if !ok || ws == nil {
		return []models.SessionEntry{}, nil
	}

	var saveErr error
	if r.flagMissingLocked(ws.VisibleSessionIDs) > 0 {
		saveErr = r.saveLocked()
	}

	result := make([]models.SessionEntry, 0, len(ws.VisibleSessionIDs))
	for _, id := range ws.VisibleSessionIDs {
		session, ok := r.state.Sessions[id]
		if !ok || session == nil {
			r.logger.WithFields(logrus.Fields{
				"workspace_id": workspaceID,
				"session_id":   id,
			}).Warn("Visible session has no record")
			continue
		}
		result = append(result, *session)
	}
	return result, saveErr
}

// ListArchived returns sessions whose cwd is workspacePath but which are
// not visible in the workspace, most recently active first.
func (r *Registry) ListArchived(workspaceID, workspacePath string) []models.SessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []models.SessionEntry{}
	if workspacePath == "" {
		return result
	}
	ws := r.state.Workspaces[workspaceID]
	for _, session := range r.state.Sessions {
		if session == nil || !sessions.SameCwd(session.Cwd, workspacePath) {
			continue
		}
		if ws != nil && ws.IsVisible(session.SessionID) {
			continue
		}
		result = append(result, *session)
	}
	sortByActivity(result)
	return result
}

// Import registers entries in bulk, typically from a directory scan.
func (r *Registry) Import(workspaceID string, entries []models.SessionEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws := r.state.Workspace(workspaceID)
	for _, entry := range entries {
		if entry.SessionID == "" {
			continue
		}
		r.putLocked(entry)
		ws.Show(entry.SessionID)
	}
	return r.saveLocked()
}

// Session returns a copy of one session record.
func (r *Registry) Session(sessionID string) (models.SessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.state.Sessions[sessionID]
	if !ok || session == nil {
		return models.SessionEntry{}, false
	}
	return *session, true
}

// MarkMissing flags a session whose transcript is gone.
func (r *Registry) MarkMissing(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.state.Sessions[sessionID]
	if !ok || session == nil {
		return errors.SessionNotFound(sessionID)
	}
	if session.Status == models.SessionMissing {
		return nil
	}
	session.Status = models.SessionMissing
	return r.saveLocked()
}

// WorkspaceIDs returns every workspace with a registry record, sorted.
func (r *Registry) WorkspaceIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.state.Workspaces))
	for id := range r.state.Workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckTranscripts runs the missing-transcript check over every visible
// session of every workspace and returns the ids that were flipped.
func (r *Registry) CheckTranscripts() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped []string
	for _, ws := range r.state.Workspaces {
		if ws == nil {
			continue
		}
		for _, id := range ws.VisibleSessionIDs {
			if r.flagMissingLocked([]string{id}) > 0 {
				flipped = append(flipped, id)
			}
		}
	}
	if len(flipped) == 0 {
		return nil, nil
	}
	sort.Strings(flipped)
	return flipped, r.saveLocked()
}

// Snapshot returns a deep copy of the aggregate.
func (r *Registry) Snapshot() *models.ThreadRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := models.NewThreadRegistry()
	out.Version = r.state.Version
	for id, ws := range r.state.Workspaces {
		if ws == nil {
			continue
		}
		ids := make([]string, len(ws.VisibleSessionIDs))
		copy(ids, ws.VisibleSessionIDs)
		out.Workspaces[id] = &models.WorkspaceRegistry{ProjectPath: ws.ProjectPath, VisibleSessionIDs: ids}
	}
	for id, session := range r.state.Sessions {
		if session == nil {
			continue
		}
		s := *session
		out.Sessions[id] = &s
	}
	return out
}

func (r *Registry) putLocked(entry models.SessionEntry) {
	if entry.Status == "" {
		entry.Status = models.SessionActive
	}
	r.state.Sessions[entry.SessionID] = &entry
}

// flagMissingLocked flips active sessions with a vanished transcript and
// returns how many changed.
func (r *Registry) flagMissingLocked(ids []string) int {
	changed := 0
	for _, id := range ids {
		session, ok := r.state.Sessions[id]
		if !ok || session == nil || session.Status != models.SessionActive || session.TranscriptPath == nil {
			continue
		}
		if !r.exists(*session.TranscriptPath) {
			session.Status = models.SessionMissing
			changed++
			r.logger.WithFields(logrus.Fields{
				"session_id": id,
				"transcript": *session.TranscriptPath,
			}).Info("Transcript missing, marking session")
		}
	}
	return changed
}

func (r *Registry) saveLocked() error {
	if err := r.store.Save(r.state); err != nil {
		r.logger.WithError(err).Error("Failed to persist registry")
		return err
	}
	return nil
}

// fileExists treats any stat error as absence.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sortByActivity(entries []models.SessionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].LastActivity != entries[j].LastActivity {
			return entries[i].LastActivity > entries[j].LastActivity
		}
		return entries[i].SessionID < entries[j].SessionID
	})
}
