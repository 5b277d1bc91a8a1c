package models

import "encoding/json"

// Inbound lifecycle event types and the synthetic events the bridge emits.
const (
	EventResponse         = "response"
	EventSessionStarted   = "session/started"
	EventSessionClosed    = "session/closed"
	EventResult           = "result"
	EventError            = "error"
	EventBridgeConnected  = "bridge/connected"
	EventBridgeDisconnect = "bridge/disconnected"
	EventBridgeStderr     = "bridge/stderr"
	EventRegistryUpdated  = "registry/updated"
	EventConfigReloaded   = "config/reloaded"
	EventWorkspaces       = "workspaces/updated"
)

// BridgeEvent is an outbound notification to UI listeners. It is never
// persisted and may be dropped when no one is listening.
type BridgeEvent struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"sessionId"`
	WorkspaceID string          `json:"workspaceId"`
	Timestamp   int64           `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEvent builds an event stamped with the current time. payload is
// marshaled; a marshal failure yields a null payload.
func NewEvent(eventType, sessionID, workspaceID string, payload interface{}) BridgeEvent {
	raw := json.RawMessage("null")
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	return BridgeEvent{
		Type:        eventType,
		SessionID:   sessionID,
		WorkspaceID: workspaceID,
		Timestamp:   NowMillis(),
		Payload:     raw,
	}
}

// SessionStart carries the routing fields and payload of a session/started
// event to the registry.
type SessionStart struct {
	SessionID      string `json:"sessionId"`
	WorkspaceID    string `json:"workspaceId"`
	Cwd            string `json:"cwd"`
	Model          string `json:"model,omitempty"`
	TranscriptPath string `json:"transcriptPath,omitempty"`
	ProjectPath    string `json:"projectPath,omitempty"`
}
