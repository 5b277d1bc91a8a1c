package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/claudemon/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every XDG root at a temp dir so the developer's real
// config never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("CLAUDEMON_HOME", root)
	t.Setenv("CLAUDE_CONFIG_DIR", filepath.Join(root, "claude"))
	for _, v := range []string{"CLAUDEMON_CLAUDE_BIN", "CLAUDEMON_BRIDGE_SCRIPT", "CLAUDEMON_RUNTIME",
		"CLAUDEMON_INIT_TIMEOUT", "CLAUDEMON_EVENT_BUFFER", "CLAUDEMON_REGISTRY", "CLAUDEMON_SOCKET"} {
		t.Setenv(v, "")
	}
	return root
}

// logSection mirrors the parts of the logging extension these tests read.
type logSection struct {
	Level string `yaml:"level"`
	File  struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"file"`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaults(t *testing.T) {
	root := isolate(t)
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "npx", cfg.Agent.Runtime)
	assert.Equal(t, []string{"tsx"}, cfg.Agent.RuntimeArgs)
	assert.Equal(t, 30*time.Second, cfg.Agent.InitTimeout.Std())
	assert.Equal(t, DefaultEventBuffer, cfg.Daemon.EventBuffer)
	assert.Equal(t, filepath.Join(root, "data", "threads.json"), cfg.Registry.Path)
	assert.Equal(t, filepath.Join(root, "claude"), cfg.Registry.ClaudeHome)
	assert.Equal(t, "current", cfg.Settings.DefaultAccessMode)
	assert.Equal(t, "default", cfg.Settings.DefaultPermissionMode)
	assert.InDelta(t, 1.0, cfg.Settings.UIScale, 1e-9)
}

func TestLayering(t *testing.T) {
	root := isolate(t)
	writeFile(t, filepath.Join(root, "config", "config.yml"), `
agent:
  init_timeout: 10s
  claude_code_bin: /opt/global/claude
daemon:
  event_buffer: 32
logging:
  level: debug
  file:
    enabled: true
`)
	project := t.TempDir()
	nested := filepath.Join(project, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeFile(t, filepath.Join(project, ".claudemon.yml"), `
agent:
  claude_code_bin: ${TEST_CLAUDE_BIN:-/opt/project/claude}
logging:
  level: warn
`)
	t.Setenv("CLAUDEMON_EVENT_BUFFER", "64")
	t.Setenv("TEST_CLAUDE_BIN", "")

	cfg, err := LoadFrom(nested)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Agent.InitTimeout.Std())
	assert.Equal(t, "/opt/project/claude", cfg.Agent.ClaudeCodeBin)
	assert.Equal(t, 64, cfg.Daemon.EventBuffer)

	var logCfg logSection
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "warn", logCfg.Level)
	assert.True(t, logCfg.File.Enabled, "one-level merge keeps global nested keys")
}

func TestTOMLConfig(t *testing.T) {
	root := isolate(t)
	writeFile(t, filepath.Join(root, "config", "config.toml"), `
[agent]
runtime = "bunx"
runtime_args = ["--yes", "tsx"]
init_timeout = "45s"

[settings]
default_permission_mode = "plan"

[logging]
level = "error"
`)

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "bunx", cfg.Agent.Runtime)
	assert.Equal(t, []string{"--yes", "tsx"}, cfg.Agent.RuntimeArgs)
	assert.Equal(t, 45*time.Second, cfg.Agent.InitTimeout.Std())
	assert.Equal(t, "plan", cfg.Settings.DefaultPermissionMode)

	var logCfg logSection
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "error", logCfg.Level)
}

func TestSchemaRejectsUnknownKeys(t *testing.T) {
	isolate(t)
	_, err := LoadFromBytes([]byte("agent:\n  init_timout: 5s\n"), "yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation))
}

func TestSchemaRejectsBadDuration(t *testing.T) {
	isolate(t)
	_, err := LoadFromBytes([]byte("agent:\n  init_timeout: soon\n"), "yaml")
	require.Error(t, err)
}

func TestValidateSemantics(t *testing.T) {
	isolate(t)
	_, err := LoadFromBytes([]byte("settings:\n  default_permission_mode: yolo\n"), "yaml")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigValidation, errors.GetCode(err))
}

func TestLoadMissingFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"init_timeout"`)
	assert.Contains(t, string(data), `"event_buffer"`)
	assert.NotContains(t, string(data), `"Extensions"`)
}
