package registry

import (
	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/sessions"
)

// Integration translates bridge lifecycle events into registry mutations.
type Integration struct {
	registry *Registry
	logger   *logrus.Entry
}

// NewIntegration wires lifecycle events into reg.
func NewIntegration(reg *Registry) *Integration {
	return &Integration{
		registry: reg,
		logger:   logging.NewLogger("registry"),
	}
}

// SessionStarted registers a newly started session as visible in its
// workspace. Missing transcript paths are derived from the cwd; the project
// path is only derived when the event supplied neither.
func (i *Integration) SessionStarted(start models.SessionStart) error {
	if start.SessionID == "" {
		i.logger.WithField("workspace_id", start.WorkspaceID).Warn("session/started without a session id, not registering")
		return nil
	}

	transcript := start.TranscriptPath
	project := start.ProjectPath
	if transcript == "" && i.registry.ClaudeHome() != "" {
		derivedTranscript, derivedProject := sessions.DerivePaths(i.registry.ClaudeHome(), start.Cwd, start.SessionID)
		transcript = derivedTranscript
		if project == "" {
			project = derivedProject
		}
	}

	now := models.NowMillis()
	entry := models.SessionEntry{
		SessionID:      start.SessionID,
		Cwd:            start.Cwd,
		CreatedAt:      now,
		LastActivity:   now,
		TranscriptPath: models.StringPtr(transcript),
		ProjectPath:    models.StringPtr(project),
		Status:         models.SessionActive,
	}
	i.logger.WithFields(logrus.Fields{
		"session_id":   start.SessionID,
		"workspace_id": start.WorkspaceID,
	}).Debug("Registering session")
	return i.registry.Register(start.WorkspaceID, entry)
}

// TurnCompleted bumps the session's lastActivity.
func (i *Integration) TurnCompleted(sessionID string) error {
	return i.registry.UpdateActivity(sessionID, nil)
}
