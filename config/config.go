package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultInitTimeout bounds the initialize handshake with the agent.
	DefaultInitTimeout = 30 * time.Second
	// DefaultEventBuffer is the per-subscriber event capacity.
	DefaultEventBuffer = 256
	// DefaultRuntime launches the TypeScript bridge.
	DefaultRuntime = "npx"
	// DefaultClientName is sent as clientInfo.name.
	DefaultClientName = "claudemon"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// projectConfigNames are searched upward from the start directory.
var projectConfigNames = []string{
	".claudemon.yml",
	".claudemon.yaml",
	".claudemon.toml",
}

// globalConfigNames are looked up in the config directory.
var globalConfigNames = []string{
	"config.yml",
	"config.yaml",
	"config.toml",
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.resolvePaths()
	return cfg
}

// Load reads a single configuration file over the defaults.
func Load(path string) (*Config, error) {
	layer, err := loadLayer(path)
	if err != nil {
		return nil, err
	}
	cfg := mergeConfigs(&Config{}, layer)
	applyEnvOverrides(cfg)
	return finalize(cfg)
}

// LoadDefault loads the layered configuration starting from the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging:
// 1. Global config (<config dir>/config.yml) - base layer
// 2. Project config (.claudemon.yml found upward from startDir) - overrides global
// 3. CLAUDEMON_* environment variables - override all
//
// Missing files are not an error.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, quietLogger())
}

// LoadFromWithLogger is LoadFrom with debug logging of each layer.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	cfg := &Config{}

	if globalPath := GlobalConfigPath(); globalPath != "" {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		layer, err := loadLayer(globalPath)
		if err != nil {
			return nil, err
		}
		cfg = mergeConfigs(cfg, layer)
	}

	if projectPath := FindProjectConfig(startDir); projectPath != "" {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		layer, err := loadLayer(projectPath)
		if err != nil {
			return nil, err
		}
		cfg = mergeConfigs(cfg, layer)
	}

	applyEnvOverrides(cfg)
	return finalize(cfg)
}

// LoadFromBytes parses configuration from a byte slice. format is "yaml" or "toml".
func LoadFromBytes(data []byte, format string) (*Config, error) {
	layer, err := parseLayer(data, format, "<bytes>")
	if err != nil {
		return nil, err
	}
	return finalize(mergeConfigs(&Config{}, layer))
}

func finalize(cfg *Config) (*Config, error) {
	cfg.SetDefaults()
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths fills in path defaults and expands a leading ~.
func (c *Config) resolvePaths() {
	if c.Registry.Path == "" {
		c.Registry.Path = paths.RegistryPath()
	}
	if c.Registry.Workspaces == "" {
		c.Registry.Workspaces = paths.WorkspacesPath()
	}
	if c.Registry.ClaudeHome == "" {
		c.Registry.ClaudeHome = paths.ClaudeHome()
	}
	if c.Daemon.Socket == "" {
		c.Daemon.Socket = paths.SocketPath()
	}
	c.Registry.Path = expandHome(c.Registry.Path)
	c.Registry.Workspaces = expandHome(c.Registry.Workspaces)
	c.Registry.ClaudeHome = expandHome(c.Registry.ClaudeHome)
	c.Daemon.Socket = expandHome(c.Daemon.Socket)
	c.Agent.BridgeScript = expandHome(c.Agent.BridgeScript)
	c.Agent.ClaudeCodeBin = expandHome(c.Agent.ClaudeCodeBin)
	c.Agent.EnvFile = expandHome(c.Agent.EnvFile)
}

// loadLayer reads, validates and decodes one file. A missing file yields an
// empty layer only when it was found by search; explicit Load reports it.
func loadLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return parseLayer(data, format, path)
}

func parseLayer(data []byte, format, source string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var raw map[string]interface{}
	var decodeErr error
	switch format {
	case "toml":
		decodeErr = toml.Unmarshal(expanded, &raw)
	default:
		decodeErr = yaml.Unmarshal(expanded, &raw)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, errors.ErrCodeConfigInvalid, "failed to parse configuration").
			WithDetail("path", source)
	}
	if raw == nil {
		return &Config{}, nil
	}

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed").
			WithDetail("path", source)
	}

	var layer Config
	switch format {
	case "toml":
		decodeErr = toml.Unmarshal(expanded, &layer)
		layer.Extensions = extensionKeys(raw)
	default:
		decodeErr = yaml.Unmarshal(expanded, &layer)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, errors.ErrCodeConfigInvalid, "failed to decode configuration").
			WithDetail("path", source)
	}
	return &layer, nil
}

// extensionKeys returns the top-level keys that are not part of Config.
func extensionKeys(raw map[string]interface{}) map[string]interface{} {
	known := map[string]bool{"agent": true, "daemon": true, "registry": true, "settings": true}
	ext := make(map[string]interface{})
	for k, v := range raw {
		if !known[k] {
			ext[k] = v
		}
	}
	if len(ext) == 0 {
		return nil
	}
	return ext
}

// FindProjectConfig searches from startDir up to the filesystem root for a
// project configuration file. It returns "" if none exists.
func FindProjectConfig(startDir string) string {
	dir := startDir
	for {
		for _, name := range projectConfigNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// GlobalConfigPath returns the first existing global config file, or "".
func GlobalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range globalConfigNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// applyEnvOverrides applies CLAUDEMON_* variables on top of file layers.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("CLAUDEMON_CLAUDE_BIN"); v != "" {
		c.Agent.ClaudeCodeBin = v
	}
	if v := os.Getenv("CLAUDEMON_BRIDGE_SCRIPT"); v != "" {
		c.Agent.BridgeScript = v
	}
	if v := os.Getenv("CLAUDEMON_RUNTIME"); v != "" {
		c.Agent.Runtime = v
	}
	if v := os.Getenv("CLAUDEMON_INIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Agent.InitTimeout = Duration(d)
		}
	}
	if v := os.Getenv("CLAUDEMON_EVENT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Daemon.EventBuffer = n
		}
	}
	if v := os.Getenv("CLAUDEMON_REGISTRY"); v != "" {
		c.Registry.Path = v
	}
	if v := os.Getenv("CLAUDEMON_SOCKET"); v != "" {
		c.Daemon.Socket = v
	}
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
