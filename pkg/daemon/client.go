// Package daemon provides a client for the claudemon daemon. It implements
// a transparent fallback: if the daemon is running, calls go over its Unix
// socket; if not, the same calls run in-process.
package daemon

import (
	"context"
	"encoding/json"

	"github.com/grovetools/claudemon/pkg/bridge"
	"github.com/grovetools/claudemon/pkg/models"
)

// Client is the operation surface shared by RemoteClient and LocalClient.
type Client interface {
	// Call sends one agent method with raw JSON params and returns the
	// agent's result.
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)

	// BridgeStatus describes the agent process.
	BridgeStatus(ctx context.Context) (bridge.Status, error)

	// Connect starts the agent process if needed.
	Connect(ctx context.Context) (bridge.Status, error)

	// Disconnect stops the agent process.
	Disconnect(ctx context.Context) error

	// Doctor checks the agent toolchain.
	Doctor(ctx context.Context) (models.DoctorResult, error)

	// ListSessions returns a workspace's visible or archived sessions.
	ListSessions(ctx context.Context, workspaceID string, archived bool) ([]models.SessionEntry, error)

	// Archive hides a session; Unarchive shows it again.
	Archive(ctx context.Context, workspaceID, sessionID string) error
	Unarchive(ctx context.Context, workspaceID, sessionID string) error

	// Scan lists transcripts on disk for a workspace; Import also makes them visible.
	Scan(ctx context.Context, workspaceID string) ([]models.SessionEntry, error)
	Import(ctx context.Context, workspaceID string) ([]models.SessionEntry, error)

	// History returns a session's parsed transcript.
	History(ctx context.Context, workspaceID, sessionID string) (*models.SessionHistory, error)

	// StreamEvents subscribes to BridgeEvents. The channel is closed when
	// ctx is canceled or the stream ends.
	StreamEvents(ctx context.Context) (<-chan models.BridgeEvent, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
