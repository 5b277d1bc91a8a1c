package models

import "encoding/json"

// WorkspaceEntry is one user-facing project folder from workspaces.json.
type WorkspaceEntry struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Path     string            `json:"path"`
	CodexBin *string           `json:"codex_bin"`
	Kind     string            `json:"kind,omitempty"`
	ParentID *string           `json:"parentId,omitempty"`
	Settings WorkspaceSettings `json:"settings"`
}

// WorkspaceSettings are per-workspace agent options.
type WorkspaceSettings struct {
	SidebarCollapsed bool                       `json:"sidebarCollapsed"`
	SortOrder        *int                       `json:"sortOrder,omitempty"`
	MCPServers       map[string]MCPServerConfig `json:"mcpServers,omitempty"`
	Plugins          []PluginConfig             `json:"plugins,omitempty"`
}

// MCPServerConfig describes one MCP server handed to the agent.
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty" mapstructure:"type"`
	Command string            `json:"command,omitempty" mapstructure:"command"`
	Args    []string          `json:"args,omitempty" mapstructure:"args"`
	Env     map[string]string `json:"env,omitempty" mapstructure:"env"`
	URL     string            `json:"url,omitempty" mapstructure:"url"`
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

// PluginConfig is a local plugin reference.
type PluginConfig struct {
	Type string `json:"type" mapstructure:"type"`
	Path string `json:"path" mapstructure:"path"`
}

// AppSettings are the user-level defaults.
type AppSettings struct {
	CodexBin              *string `json:"codexBin" yaml:"codex_bin,omitempty" toml:"codex_bin,omitempty"`
	ClaudeCodeBin         *string `json:"claudeCodeBin" yaml:"claude_code_bin,omitempty" toml:"claude_code_bin,omitempty"`
	DefaultAccessMode     string  `json:"defaultAccessMode" yaml:"default_access_mode,omitempty" toml:"default_access_mode,omitempty"`
	DefaultPermissionMode string  `json:"defaultPermissionMode" yaml:"default_permission_mode,omitempty" toml:"default_permission_mode,omitempty"`
	UIScale               float64 `json:"uiScale" yaml:"ui_scale,omitempty" toml:"ui_scale,omitempty"`
}

// DefaultAppSettings returns the settings used when nothing is configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		DefaultAccessMode:     "current",
		DefaultPermissionMode: "default",
		UIScale:               1.0,
	}
}

// ApplyDefaults fills unset fields.
func (s *AppSettings) ApplyDefaults() {
	d := DefaultAppSettings()
	if s.DefaultAccessMode == "" {
		s.DefaultAccessMode = d.DefaultAccessMode
	}
	if s.DefaultPermissionMode == "" {
		s.DefaultPermissionMode = d.DefaultPermissionMode
	}
	if s.UIScale == 0 {
		s.UIScale = d.UIScale
	}
}

// UnmarshalJSON applies defaults for missing fields.
func (s *AppSettings) UnmarshalJSON(data []byte) error {
	type plain AppSettings
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = AppSettings(raw)
	s.ApplyDefaults()
	return nil
}
