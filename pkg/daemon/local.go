package daemon

import (
	"context"
	"encoding/json"

	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/internal/daemon/app"
	"github.com/grovetools/claudemon/pkg/bridge"
	"github.com/grovetools/claudemon/pkg/models"
)

// LocalClient implements Client in-process. It is used when the daemon is
// not running: the agent process lives only as long as the client.
type LocalClient struct {
	app *app.App
}

// NewLocalClient opens the registry and prepares an in-process bridge.
func NewLocalClient(cfg *config.Config, opts ...app.Option) (*LocalClient, error) {
	a, err := app.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &LocalClient{app: a}, nil
}

// Call decodes params for method and sends it.
func (c *LocalClient) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	p, err := bridge.DecodeParams(method, params)
	if err != nil {
		return nil, err
	}
	return c.app.Commands.Call(ctx, p)
}

// BridgeStatus describes the in-process bridge.
func (c *LocalClient) BridgeStatus(ctx context.Context) (bridge.Status, error) {
	return c.app.Supervisor.Status(), nil
}

// Connect starts the in-process bridge.
func (c *LocalClient) Connect(ctx context.Context) (bridge.Status, error) {
	return c.app.Connect(ctx)
}

// Disconnect stops the in-process bridge.
func (c *LocalClient) Disconnect(ctx context.Context) error {
	return c.app.Disconnect()
}

// Doctor runs the toolchain checks directly.
func (c *LocalClient) Doctor(ctx context.Context) (models.DoctorResult, error) {
	return c.app.Doctor(ctx), nil
}

// ListSessions reads the registry directly.
func (c *LocalClient) ListSessions(ctx context.Context, workspaceID string, archived bool) ([]models.SessionEntry, error) {
	return c.app.ListSessions(workspaceID, archived)
}

// Archive hides a session.
func (c *LocalClient) Archive(ctx context.Context, workspaceID, sessionID string) error {
	return c.app.Archive(workspaceID, sessionID)
}

// Unarchive shows a session again.
func (c *LocalClient) Unarchive(ctx context.Context, workspaceID, sessionID string) error {
	return c.app.Unarchive(workspaceID, sessionID)
}

// Scan lists transcripts for a workspace.
func (c *LocalClient) Scan(ctx context.Context, workspaceID string) ([]models.SessionEntry, error) {
	return c.app.Scan(workspaceID)
}

// Import scans a workspace and registers what it finds.
func (c *LocalClient) Import(ctx context.Context, workspaceID string) ([]models.SessionEntry, error) {
	return c.app.Import(workspaceID)
}

// History parses a session transcript.
func (c *LocalClient) History(ctx context.Context, workspaceID, sessionID string) (*models.SessionHistory, error) {
	return c.app.History(workspaceID, sessionID)
}

// StreamEvents subscribes to the in-process broadcaster. Only events from
// this client's own bridge are seen.
func (c *LocalClient) StreamEvents(ctx context.Context) (<-chan models.BridgeEvent, error) {
	sub := c.app.Events.Subscribe()
	out := make(chan models.BridgeEvent, 16)
	go func() {
		defer close(out)
		defer c.app.Events.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close stops the in-process bridge.
func (c *LocalClient) Close() error {
	return c.app.Close()
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
