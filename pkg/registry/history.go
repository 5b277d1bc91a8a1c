package registry

import (
	"fmt"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/sessions"
)

// History parses a session's transcript. A session without a stored
// transcript path gets one derived from its cwd. When the transcript is gone
// the session is marked missing and an empty history is returned.
func (r *Registry) History(sessionID string) (*models.SessionHistory, error) {
	transcript, err := r.resolveTranscript(sessionID)
	if err != nil {
		return nil, err
	}

	if !r.exists(transcript) {
		r.mu.Lock()
		session := r.state.Sessions[sessionID]
		var saveErr error
		if session != nil && session.Status != models.SessionMissing {
			session.Status = models.SessionMissing
			saveErr = r.saveLocked()
		}
		var preview *string
		var lastActivity int64
		if session != nil {
			preview = session.Preview
			lastActivity = session.LastActivity
		}
		r.mu.Unlock()
		if saveErr != nil {
			r.logger.WithError(saveErr).Warn("Could not persist missing status")
		}
		return &models.SessionHistory{
			SessionID:    sessionID,
			Items:        []models.HistoryItem{},
			Preview:      preview,
			LastActivity: lastActivity,
			Status:       models.SessionMissing,
		}, nil
	}

	history, err := sessions.ParseHistory(sessionID, transcript)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("failed to read transcript %s", transcript))
	}
	if session, ok := r.Session(sessionID); ok {
		history.Status = session.Status
	}
	return history, nil
}

// TranscriptPath returns the transcript location for a session, deriving
// and persisting it when the record has none.
func (r *Registry) TranscriptPath(sessionID string) (string, error) {
	return r.resolveTranscript(sessionID)
}

func (r *Registry) resolveTranscript(sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.state.Sessions[sessionID]
	if !ok || session == nil {
		return "", errors.SessionNotFound(sessionID)
	}
	if session.TranscriptPath != nil && *session.TranscriptPath != "" {
		return *session.TranscriptPath, nil
	}
	if r.claudeHome == "" || session.Cwd == "" {
		return "", errors.New(errors.ErrCodeNotFound, fmt.Sprintf("Session %s has no transcript path", sessionID)).
			WithDetail("sessionId", sessionID)
	}

	transcript, project := sessions.DerivePaths(r.claudeHome, session.Cwd, sessionID)
	session.TranscriptPath = models.StringPtr(transcript)
	session.ProjectPath = models.StringPtr(project)
	if err := r.saveLocked(); err != nil {
		r.logger.WithError(err).Warn("Could not persist derived transcript path")
	}
	return transcript, nil
}
