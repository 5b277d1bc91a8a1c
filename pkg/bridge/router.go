package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/pkg/models"
)

// Lifecycle receives the session events that affect persisted state.
type Lifecycle interface {
	SessionStarted(start models.SessionStart) error
	TurnCompleted(sessionID string) error
}

// router classifies every line read from the agent's stdout. Responses to
// parked requests are delivered to their callers; everything else is
// broadcast, after which lifecycle side effects run. Side-effect failures
// are logged and never stop the reader.
type router struct {
	pending   *pendingRequests
	events    Publisher
	lifecycle Lifecycle
	tracker   *Tracker
	logger    *logrus.Entry
	now       func() int64
}

type responsePayload struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type sessionStartedPayload struct {
	Cwd            string `json:"cwd"`
	Model          string `json:"model"`
	TranscriptPath string `json:"transcriptPath"`
	ProjectPath    string `json:"projectPath"`
}

func (r *router) handleLine(line string) {
	ev, err := r.decode(line)
	if err != nil {
		r.logger.WithError(err).WithField("line", truncate(line, 200)).Warn("Failed to parse bridge output")
		r.publish(models.NewEvent(models.EventError, "", "", map[string]interface{}{
			"code":        "PARSE_ERROR",
			"message":     fmt.Sprintf("Failed to parse bridge output: %v", err),
			"raw":         truncate(line, 1000),
			"recoverable": true,
		}))
		return
	}

	if ev.Type == models.EventResponse && r.deliver(ev.Payload) {
		return
	}

	r.publish(ev)

	switch ev.Type {
	case models.EventSessionStarted:
		r.sessionStarted(ev)
	case models.EventResult:
		if r.lifecycle != nil {
			if err := r.lifecycle.TurnCompleted(ev.SessionID); err != nil {
				r.logger.WithError(err).WithField("session_id", ev.SessionID).Error("Failed to update session activity")
			}
		}
	case models.EventSessionClosed:
		if r.tracker != nil && ev.SessionID != "" {
			r.tracker.Remove(ev.SessionID)
		}
	}
}

// decode turns a line into an event. Non-object JSON is accepted with every
// field defaulted, matching how missing fields are treated.
func (r *router) decode(line string) (models.BridgeEvent, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return models.BridgeEvent{}, err
	}
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(raw, &fields)

	ev := models.BridgeEvent{
		Type:        stringField(fields, "type"),
		SessionID:   stringField(fields, "sessionId"),
		WorkspaceID: stringField(fields, "workspaceId"),
		Payload:     json.RawMessage("null"),
	}
	if ev.Type == "" {
		ev.Type = "unknown"
	}
	if ts, ok := fields["timestamp"]; !ok || !isPresent(ts) || json.Unmarshal(ts, &ev.Timestamp) != nil {
		ev.Timestamp = r.now()
	}
	if p, ok := fields["payload"]; ok && len(p) > 0 {
		ev.Payload = p
	}
	return ev, nil
}

// deliver resolves the parked request a response payload refers to.
func (r *router) deliver(payload json.RawMessage) bool {
	var resp responsePayload
	if err := json.Unmarshal(payload, &resp); err != nil || resp.ID == nil {
		return false
	}
	out := reply{result: resp.Result}
	if isPresent(resp.Error) {
		out = reply{err: resp.Error}
	} else if !isPresent(out.result) {
		out.result = json.RawMessage("null")
	}
	if !r.pending.resolve(*resp.ID, out) {
		r.logger.WithField("id", *resp.ID).Debug("Response for unknown request")
		return false
	}
	return true
}

func (r *router) sessionStarted(ev models.BridgeEvent) {
	var p sessionStartedPayload
	_ = json.Unmarshal(ev.Payload, &p)

	if r.tracker != nil && ev.SessionID != "" && ev.WorkspaceID != "" {
		r.tracker.Track(models.TrackedSession{
			SessionID:   ev.SessionID,
			WorkspaceID: ev.WorkspaceID,
			Cwd:         p.Cwd,
			Model:       p.Model,
			StartedAt:   r.now(),
		})
	}
	if r.lifecycle == nil {
		return
	}
	err := r.lifecycle.SessionStarted(models.SessionStart{
		SessionID:      ev.SessionID,
		WorkspaceID:    ev.WorkspaceID,
		Cwd:            p.Cwd,
		Model:          p.Model,
		TranscriptPath: p.TranscriptPath,
		ProjectPath:    p.ProjectPath,
	})
	if err != nil {
		r.logger.WithError(err).WithField("session_id", ev.SessionID).Error("Failed to register session")
	}
}

func (r *router) publish(ev models.BridgeEvent) {
	if r.events != nil {
		r.events.Publish(ev)
	}
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// isPresent reports whether a raw field was set to something other than null.
func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
