//go:generate sh -c "cd .. && go run ./tools/schema-generator/"

package config

import (
	"fmt"
	"time"

	"github.com/grovetools/claudemon/pkg/models"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Config is the claudemon configuration, assembled from defaults, the global
// config file, a project .claudemon.yml and CLAUDEMON_* variables.
type Config struct {
	Agent    AgentConfig        `yaml:"agent,omitempty" toml:"agent,omitempty" jsonschema:"description=How the agent bridge process is launched"`
	Daemon   DaemonConfig       `yaml:"daemon,omitempty" toml:"daemon,omitempty" jsonschema:"description=Daemon socket and background work settings"`
	Registry RegistryConfig     `yaml:"registry,omitempty" toml:"registry,omitempty" jsonschema:"description=Session registry storage"`
	Settings models.AppSettings `yaml:"settings,omitempty" toml:"settings,omitempty" jsonschema:"description=User-level defaults shared with the UI"`

	// Extensions captures all other top-level keys (e.g. logging).
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// AgentConfig describes the bridge subprocess.
type AgentConfig struct {
	// Runtime is the launcher for the bridge script (default "npx").
	Runtime string `yaml:"runtime,omitempty" toml:"runtime,omitempty" jsonschema:"description=Launcher used to run the bridge script"`
	// RuntimeArgs precede the script path (default ["tsx"]).
	RuntimeArgs []string `yaml:"runtime_args,omitempty" toml:"runtime_args,omitempty" jsonschema:"description=Arguments placed before the bridge script"`
	// BridgeScript is the entry point of the bridge. Empty means search for
	// claude-bridge/index.ts next to the binary and upward from the cwd.
	BridgeScript string `yaml:"bridge_script,omitempty" toml:"bridge_script,omitempty" jsonschema:"description=Path to the bridge entry point"`
	// ClaudeCodeBin overrides the agent CLI; its directory joins the search path.
	ClaudeCodeBin string `yaml:"claude_code_bin,omitempty" toml:"claude_code_bin,omitempty" jsonschema:"description=Path to the Claude Code CLI"`
	// NodeBin is the node binary used by doctor.
	NodeBin string `yaml:"node_bin,omitempty" toml:"node_bin,omitempty" jsonschema:"description=Node.js binary checked by doctor"`
	// InitTimeout bounds the initialize handshake.
	InitTimeout Duration `yaml:"init_timeout,omitempty" toml:"init_timeout,omitempty" jsonschema:"description=Initialize handshake timeout (e.g. 30s)"`
	// EnvFile is a dotenv file merged into the agent's environment.
	EnvFile string `yaml:"env_file,omitempty" toml:"env_file,omitempty" jsonschema:"description=Dotenv file loaded into the agent environment"`
	// ClientName is reported in the initialize handshake.
	ClientName string `yaml:"client_name,omitempty" toml:"client_name,omitempty" jsonschema:"description=Client name sent during initialize"`
}

// DaemonConfig controls the long-running daemon.
type DaemonConfig struct {
	Socket             string   `yaml:"socket,omitempty" toml:"socket,omitempty" jsonschema:"description=Unix socket path"`
	EventBuffer        int      `yaml:"event_buffer,omitempty" toml:"event_buffer,omitempty" jsonschema:"description=Per-subscriber event buffer; oldest events are dropped when full,minimum=1"`
	TranscriptInterval Duration `yaml:"transcript_interval,omitempty" toml:"transcript_interval,omitempty" jsonschema:"description=How often visible transcripts are checked for existence"`
	ShutdownTimeout    Duration `yaml:"shutdown_timeout,omitempty" toml:"shutdown_timeout,omitempty" jsonschema:"description=Grace period for shutdown"`
}

// RegistryConfig locates persisted state.
type RegistryConfig struct {
	Path       string `yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=threads.json location"`
	Workspaces string `yaml:"workspaces,omitempty" toml:"workspaces,omitempty" jsonschema:"description=workspaces.json location"`
	ClaudeHome string `yaml:"claude_home,omitempty" toml:"claude_home,omitempty" jsonschema:"description=Agent storage root containing projects/"`
}

// Duration is a time.Duration that reads and writes as a string like "30s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// JSONSchema describes Duration as a Go duration string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string",
	}
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Agent.Runtime == "" {
		c.Agent.Runtime = DefaultRuntime
	}
	if c.Agent.RuntimeArgs == nil {
		c.Agent.RuntimeArgs = []string{"tsx"}
	}
	if c.Agent.InitTimeout == 0 {
		c.Agent.InitTimeout = Duration(DefaultInitTimeout)
	}
	if c.Agent.ClientName == "" {
		c.Agent.ClientName = DefaultClientName
	}
	if c.Agent.NodeBin == "" {
		c.Agent.NodeBin = "node"
	}
	if c.Daemon.EventBuffer == 0 {
		c.Daemon.EventBuffer = DefaultEventBuffer
	}
	if c.Daemon.TranscriptInterval == 0 {
		c.Daemon.TranscriptInterval = Duration(30 * time.Second)
	}
	if c.Daemon.ShutdownTimeout == 0 {
		c.Daemon.ShutdownTimeout = Duration(5 * time.Second)
	}
	c.Settings.ApplyDefaults()
	if c.Agent.ClaudeCodeBin == "" && c.Settings.ClaudeCodeBin != nil {
		c.Agent.ClaudeCodeBin = *c.Settings.ClaudeCodeBin
	}
}

// UnmarshalExtension decodes a specific extension's configuration into the
// provided target struct. The target must be a pointer. A missing key leaves
// the target zero-valued.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
