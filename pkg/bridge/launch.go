package bridge

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/grovetools/claudemon/command"
	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/paths"
	"github.com/grovetools/claudemon/pkg/process"
)

// bridgeEntry is the script looked for when none is configured.
var bridgeEntry = filepath.Join("claude-bridge", "index.ts")

// CommandLauncher starts the bridge as `<runtime> <runtime_args...> <script>`
// with the extended search path and the optional env file applied.
type CommandLauncher struct {
	cfg config.AgentConfig
	// Dir is the working directory of the process. Empty means inherit.
	Dir string
}

// NewLauncher returns a Launcher for the agent configuration.
func NewLauncher(cfg config.AgentConfig) *CommandLauncher {
	return &CommandLauncher{cfg: cfg}
}

// SearchPath returns the directories the process will see on PATH.
func (l *CommandLauncher) SearchPath() []string {
	return process.BuildSearchPath(process.SearchPathOptions{AgentBin: l.cfg.ClaudeCodeBin})
}

// Command implements Launcher.
func (l *CommandLauncher) Command() (*exec.Cmd, error) {
	script, err := FindBridgeScript(l.cfg.BridgeScript, searchRoots())
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	if l.cfg.EnvFile != "" {
		fileEnv, err := godotenv.Read(l.cfg.EnvFile)
		if err != nil {
			return nil, errors.SpawnFailed(l.cfg.Runtime, err).WithDetail("env_file", l.cfg.EnvFile)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	if l.cfg.ClaudeCodeBin != "" {
		env["CLAUDE_CODE_BIN"] = l.cfg.ClaudeCodeBin
	}

	args := append(append([]string{}, l.cfg.RuntimeArgs...), script)
	c, err := command.NewBuilder().
		WithSearchPath(l.SearchPath()).
		WithEnv(env).
		Build(l.cfg.Runtime, args...)
	if err != nil {
		return nil, err
	}
	cmd, err := c.Exec()
	if err != nil {
		if errors.Is(err, errors.ErrCodeCommandNotFound) {
			return nil, notFoundError(l.cfg.Runtime, err)
		}
		return nil, errors.SpawnFailed(c.String(), err)
	}
	cmd.Dir = l.Dir
	return cmd, nil
}

// searchRoots lists where an unconfigured bridge script is looked for: next
// to the executable, the data directory, then upward from the cwd.
func searchRoots() []string {
	var roots []string
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		roots = append(roots, filepath.Dir(exe))
	}
	roots = append(roots, paths.DataDir())
	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots, cwd)
	}
	return roots
}

// FindBridgeScript resolves the bridge entry point. A configured path must
// exist. Otherwise each root is checked for claude-bridge/index.ts, then
// each root and its ancestors for src/claude-bridge/index.ts.
func FindBridgeScript(configured string, roots []string) (string, error) {
	if configured != "" {
		if fileExists(configured) {
			return configured, nil
		}
		return "", errors.New(errors.ErrCodeSpawnFailed, "bridge script not found: "+configured).
			WithDetail("path", configured)
	}

	for _, root := range roots {
		if candidate := filepath.Join(root, bridgeEntry); fileExists(candidate) {
			return candidate, nil
		}
	}
	for _, root := range roots {
		dir := root
		for {
			if candidate := filepath.Join(dir, "src", bridgeEntry); fileExists(candidate) {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return "", errors.New(errors.ErrCodeSpawnFailed, "Could not find claude-bridge/index.ts")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
