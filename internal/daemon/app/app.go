// Package app wires the daemon's long-lived components: the bridge
// supervisor, the session registry, the workspace store and the event
// broadcaster.
package app

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/bridge"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/registry"
	"github.com/grovetools/claudemon/pkg/sessions"
	"github.com/grovetools/claudemon/pkg/workspaces"
	"github.com/grovetools/claudemon/version"
)

// App owns one instance of every stateful component. The daemon and the
// in-process client both build on it.
type App struct {
	mu  sync.RWMutex
	cfg *config.Config

	Events     *bridge.Broadcaster
	Supervisor *bridge.Supervisor
	Commands   *bridge.Commands
	Registry   *registry.Registry
	Workspaces *workspaces.Store
	Scanner    *sessions.Scanner

	logger *logrus.Entry
}

// Option adjusts an App before it is returned.
type Option func(*App)

// WithLauncher replaces the agent launcher.
func WithLauncher(l bridge.Launcher) Option {
	return func(a *App) { a.Supervisor.SetLauncher(l) }
}

// New opens the registry and prepares the supervisor. No process is
// spawned until the first command.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	reg, err := registry.Open(cfg.Registry.Path, registry.WithClaudeHome(cfg.Registry.ClaudeHome))
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		Events:     bridge.NewBroadcaster(cfg.Daemon.EventBuffer),
		Registry:   reg,
		Workspaces: workspaces.NewStore(cfg.Registry.Workspaces),
		Scanner:    sessions.NewScanner(cfg.Registry.ClaudeHome),
		logger:     logging.NewLogger("daemon"),
	}
	a.Supervisor = bridge.NewSupervisor(bridge.Options{
		Launcher:    bridge.NewLauncher(cfg.Agent),
		ClientInfo:  clientInfo(cfg),
		InitTimeout: cfg.Agent.InitTimeout.Std(),
		Events:      a.Events,
		Lifecycle:   registry.NewIntegration(reg),
	})
	a.Commands = bridge.NewCommands(a.Supervisor, a.Workspaces, a.Settings)

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func clientInfo(cfg *config.Config) bridge.ClientInfo {
	return bridge.ClientInfo{Name: cfg.Agent.ClientName, Version: version.Version}
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Settings returns the active user settings.
func (a *App) Settings() models.AppSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Settings
}

// Reload applies a new configuration. Agent settings take effect on the
// next spawn; a running bridge is left alone. Storage paths are fixed for
// the lifetime of the App.
func (a *App) Reload(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	a.Supervisor.SetLauncher(bridge.NewLauncher(cfg.Agent))
	a.Supervisor.SetInitTimeout(cfg.Agent.InitTimeout.Std())
	a.logger.Info("Configuration reloaded")
}

// Connect makes sure the bridge is running.
func (a *App) Connect(ctx context.Context) (bridge.Status, error) {
	if _, err := a.Supervisor.EnsureRunning(ctx); err != nil {
		return a.Supervisor.Status(), err
	}
	return a.Supervisor.Status(), nil
}

// Disconnect stops the bridge.
func (a *App) Disconnect() error {
	return a.Supervisor.Disconnect()
}

// Doctor checks the agent toolchain using the configured binaries.
func (a *App) Doctor(ctx context.Context) models.DoctorResult {
	cfg := a.Config()
	return bridge.Doctor(ctx, bridge.DoctorOptions{
		NodeBin:   cfg.Agent.NodeBin,
		ClaudeBin: cfg.Agent.ClaudeCodeBin,
	})
}

// ListSessions returns a workspace's visible sessions, or its archived ones.
func (a *App) ListSessions(workspaceID string, archived bool) ([]models.SessionEntry, error) {
	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace", "required")
	}
	if !archived {
		return a.Registry.ListVisible(workspaceID)
	}
	path, err := a.Workspaces.PathOf(workspaceID)
	if err != nil {
		return nil, err
	}
	return a.Registry.ListArchived(workspaceID, path), nil
}

// Archive hides a session in a workspace.
func (a *App) Archive(workspaceID, sessionID string) error {
	if err := requireIDs(workspaceID, sessionID); err != nil {
		return err
	}
	return a.Registry.Archive(workspaceID, sessionID)
}

// Unarchive shows a session in a workspace again.
func (a *App) Unarchive(workspaceID, sessionID string) error {
	if err := requireIDs(workspaceID, sessionID); err != nil {
		return err
	}
	return a.Registry.Unarchive(workspaceID, sessionID)
}

// Scan lists transcripts on disk for a workspace directory without
// touching the registry.
func (a *App) Scan(workspaceID string) ([]models.SessionEntry, error) {
	path, err := a.Workspaces.PathOf(workspaceID)
	if err != nil {
		return nil, err
	}
	return a.Scanner.Scan(path)
}

// Import scans a workspace directory and makes every session found visible.
func (a *App) Import(workspaceID string) ([]models.SessionEntry, error) {
	found, err := a.Scan(workspaceID)
	if err != nil {
		return nil, err
	}
	if err := a.Registry.Import(workspaceID, found); err != nil {
		return nil, err
	}
	a.logger.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"count":        len(found),
	}).Info("Imported sessions")
	return found, nil
}

// History reads a session's transcript. The workspace id is only checked
// for presence.
func (a *App) History(workspaceID, sessionID string) (*models.SessionHistory, error) {
	if err := requireIDs(workspaceID, sessionID); err != nil {
		return nil, err
	}
	return a.Registry.History(sessionID)
}

// Close stops the bridge and closes every event subscription.
func (a *App) Close() error {
	err := a.Supervisor.Disconnect()
	a.Events.Close()
	return err
}

func requireIDs(workspaceID, sessionID string) error {
	if workspaceID == "" {
		return errors.InvalidInput("workspace", "required")
	}
	if sessionID == "" {
		return errors.InvalidInput("session", "required")
	}
	return nil
}
