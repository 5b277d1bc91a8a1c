package bridge

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
)

// WorkspaceLookup resolves workspace ids.
type WorkspaceLookup interface {
	Get(id string) (models.WorkspaceEntry, error)
}

// Commands is the typed call surface used by the daemon API. Each call fills
// in defaults, validates, makes sure the bridge is running and sends the
// request. Calls carry no timeout of their own beyond ctx.
type Commands struct {
	supervisor *Supervisor
	workspaces WorkspaceLookup
	settings   func() models.AppSettings
}

// NewCommands wires the call surface. workspaces and settings may be nil.
func NewCommands(sup *Supervisor, workspaces WorkspaceLookup, settings func() models.AppSettings) *Commands {
	if settings == nil {
		settings = models.DefaultAppSettings
	}
	return &Commands{supervisor: sup, workspaces: workspaces, settings: settings}
}

// Call dispatches any params value to its method.
func (c *Commands) Call(ctx context.Context, p Params) (json.RawMessage, error) {
	switch v := p.(type) {
	case *StartSessionParams:
		return c.StartSession(ctx, *v)
	case *ResumeSessionParams:
		return c.ResumeSession(ctx, *v)
	case *CloseSessionParams:
		return c.CloseSession(ctx, *v)
	case *SendMessageParams:
		return c.SendMessage(ctx, *v)
	case *ModelListParams:
		return c.ListModels(ctx, *v)
	default:
		return c.send(ctx, p)
	}
}

// StartSession starts a session. The permission mode and agent binary default
// from settings; cwd and MCP servers default from the workspace.
func (c *Commands) StartSession(ctx context.Context, p StartSessionParams) (json.RawMessage, error) {
	settings := c.settings()
	if p.PermissionMode == "" {
		p.PermissionMode = settings.DefaultPermissionMode
	}
	if p.ClaudeCodeBin == nil {
		p.ClaudeCodeBin = settings.ClaudeCodeBin
	}
	if c.workspaces != nil && p.WorkspaceID != "" && (p.Cwd == "" || !isPresent(p.MCPServers)) {
		if ws, err := c.workspaces.Get(p.WorkspaceID); err == nil {
			if p.Cwd == "" {
				p.Cwd = ws.Path
			}
			if !isPresent(p.MCPServers) && len(ws.Settings.MCPServers) > 0 {
				if data, err := json.Marshal(ws.Settings.MCPServers); err == nil {
					p.MCPServers = data
				}
			}
		}
	}
	return c.send(ctx, p)
}

// ResumeSession resumes a session in its workspace's directory.
func (c *Commands) ResumeSession(ctx context.Context, p ResumeSessionParams) (json.RawMessage, error) {
	if p.Cwd == "" {
		if c.workspaces == nil {
			return nil, errors.WorkspaceNotFound(p.WorkspaceID)
		}
		ws, err := c.workspaces.Get(p.WorkspaceID)
		if err != nil {
			return nil, err
		}
		p.Cwd = ws.Path
	}
	if p.ClaudeCodeBin == nil {
		p.ClaudeCodeBin = c.settings().ClaudeCodeBin
	}
	return c.send(ctx, p)
}

// CloseSession closes a session and stops tracking it, even if the close
// request itself fails.
func (c *Commands) CloseSession(ctx context.Context, p CloseSessionParams) (json.RawMessage, error) {
	result, err := c.send(ctx, p)
	if p.SessionID != "" {
		c.supervisor.Tracker().Remove(p.SessionID)
	}
	return result, err
}

// SendMessage sends a user turn. A message id is generated when missing.
func (c *Commands) SendMessage(ctx context.Context, p SendMessageParams) (json.RawMessage, error) {
	if p.MessageID == nil {
		id := uuid.NewString()
		p.MessageID = &id
	}
	return c.send(ctx, p)
}

// ListModels lists models for a session, falling back to any session
// started during this run.
func (c *Commands) ListModels(ctx context.Context, p ModelListParams) (json.RawMessage, error) {
	if err := c.ensureBridge(ctx); err != nil {
		return nil, err
	}
	if p.SessionID == "" {
		tracked, ok := c.supervisor.Tracker().Any()
		if !ok {
			return nil, errors.NoActiveSession()
		}
		p.SessionID = tracked.SessionID
	}
	return c.send(ctx, p)
}

// Interrupt stops the current turn.
func (c *Commands) Interrupt(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.send(ctx, InterruptParams{SessionID: sessionID})
}

// RespondPermission answers a permission prompt.
func (c *Commands) RespondPermission(ctx context.Context, p PermissionResponseParams) (json.RawMessage, error) {
	return c.send(ctx, p)
}

// Rewind restores files to an earlier user message.
func (c *Commands) Rewind(ctx context.Context, p RewindParams) (json.RawMessage, error) {
	return c.send(ctx, p)
}

// ListCommands lists slash commands.
func (c *Commands) ListCommands(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.send(ctx, CommandListParams{SessionID: models.StringPtr(sessionID)})
}

// MCPStatus reports MCP server state for a session.
func (c *Commands) MCPStatus(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.send(ctx, MCPStatusParams{SessionID: sessionID})
}

// SetMCPServers replaces a session's MCP servers.
func (c *Commands) SetMCPServers(ctx context.Context, p MCPSetParams) (json.RawMessage, error) {
	return c.send(ctx, p)
}

func (c *Commands) ensureBridge(ctx context.Context) error {
	_, err := c.supervisor.EnsureRunning(ctx)
	return err
}

func (c *Commands) send(ctx context.Context, p Params) (json.RawMessage, error) {
	if p == nil {
		return nil, errors.InvalidInput("params", "missing")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := c.supervisor.EnsureRunning(ctx)
	if err != nil {
		return nil, err
	}
	return b.SendRequest(ctx, p.Method(), p)
}
