// Package paths provides XDG-compliant path resolution for claudemon.
//
// Resolution order:
// 1. CLAUDEMON_HOME (portable root) → $CLAUDEMON_HOME/{config,data,state,cache,run}
// 2. XDG env vars → $XDG_*_HOME/claudemon
// 3. Platform defaults → ~/.config/claudemon, ~/.local/share/claudemon, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "claudemon"

// homeOverride returns the portable root subdirectory, if CLAUDEMON_HOME is set.
func homeOverride(sub string) string {
	if home := os.Getenv("CLAUDEMON_HOME"); home != "" {
		return filepath.Join(home, sub)
	}
	return ""
}

// xdgBase resolves one XDG base directory with its home-relative fallback.
func xdgBase(envVar string, fallback ...string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return dir
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, fallback...)...)
	}
	return ""
}

func resolve(sub, envVar string, fallback ...string) string {
	if dir := homeOverride(sub); dir != "" {
		return dir
	}
	base := xdgBase(envVar, fallback...)
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the configuration directory.
// Used for config.yml and workspaces.json.
func ConfigDir() string {
	return resolve("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir returns the data directory.
// Used for the session registry.
func DataDir() string {
	return resolve("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the state directory.
// Used for the pid file and logs.
func StateDir() string {
	return resolve("state", "XDG_STATE_HOME", ".local", "state")
}

// CacheDir returns the cache directory.
func CacheDir() string {
	return resolve("cache", "XDG_CACHE_HOME", ".cache")
}

// RuntimeDir returns the runtime directory for sockets.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if dir := homeOverride("run"); dir != "" {
		return dir
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// LogDir returns the directory for log files.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// SocketPath returns the path to the daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "claudemon.sock")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "claudemon.pid")
}

// RegistryPath returns the default location of threads.json.
func RegistryPath() string {
	return filepath.Join(DataDir(), "threads.json")
}

// WorkspacesPath returns the default location of workspaces.json.
func WorkspacesPath() string {
	return filepath.Join(ConfigDir(), "workspaces.json")
}

// ClaudeHome returns the agent's own storage root. CLAUDE_CONFIG_DIR wins
// over ~/.claude.
func ClaudeHome() string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".claude")
	}
	return ""
}

// EnsureDirs creates all claudemon directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		DataDir(),
		StateDir(),
		CacheDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
