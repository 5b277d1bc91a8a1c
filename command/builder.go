// Package command builds and runs external tool invocations (node, the agent
// CLI, the bridge runtime) with a resolved PATH and bounded run time.
package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/process"
)

const (
	// DefaultTimeout bounds one-shot probes such as `node --version`.
	DefaultTimeout = 5 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

// Builder produces commands that share one environment.
type Builder struct {
	defaultTimeout time.Duration
	env            map[string]string
	executor       Executor
}

// NewBuilder creates a Builder backed by a RealExecutor.
func NewBuilder() *Builder {
	return NewBuilderWithExecutor(&RealExecutor{})
}

// NewBuilderWithExecutor creates a Builder with a custom Executor.
func NewBuilderWithExecutor(exec Executor) *Builder {
	return &Builder{
		defaultTimeout: DefaultTimeout,
		env:            map[string]string{},
		executor:       exec,
	}
}

// WithSearchPath sets PATH for every command built afterwards.
func (b *Builder) WithSearchPath(dirs []string) *Builder {
	if len(dirs) > 0 {
		b.env["PATH"] = process.JoinSearchPath(dirs)
	}
	return b
}

// WithEnv sets additional environment variables.
func (b *Builder) WithEnv(vars map[string]string) *Builder {
	for k, v := range vars {
		b.env[k] = v
	}
	return b
}

// WithTimeout changes the default run timeout. It is capped at MaxTimeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout > 0 {
		b.defaultTimeout = timeout
	}
	return b
}

// SearchPath returns the PATH value commands will see, or "" if unset.
func (b *Builder) SearchPath() string {
	return b.env["PATH"]
}

// Env returns the full child environment: the current process environment
// with the builder's overrides applied.
func (b *Builder) Env() []string {
	return process.MergeEnv(os.Environ(), b.env)
}

// Command is a single prepared invocation.
type Command struct {
	name     string
	args     []string
	env      []string
	timeout  time.Duration
	executor Executor
}

// Build validates name and returns a Command.
func (b *Builder) Build(name string, args ...string) (*Command, error) {
	if err := validateBinary(name); err != nil {
		return nil, err
	}
	return &Command{
		name:     name,
		args:     args,
		env:      b.Env(),
		timeout:  b.defaultTimeout,
		executor: b.executor,
	}, nil
}

// validateBinary rejects names that are empty or carry shell metacharacters.
// Commands are never run through a shell, so this only guards against
// accidental pastes of full command lines into a bin setting.
func validateBinary(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidInput("binary", "cannot be empty")
	}
	if strings.ContainsAny(name, ";|&$`\n") {
		return errors.InvalidInput("binary", fmt.Sprintf("%q contains shell metacharacters", name))
	}
	return nil
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Exec creates a long-lived exec.Cmd with the builder's environment. The
// caller owns its lifetime; no timeout is applied.
func (c *Command) Exec() (*exec.Cmd, error) {
	bin, err := c.resolve()
	if err != nil {
		return nil, err
	}
	cmd := c.executor.Command(bin, c.args...) //nolint:gosec // name validated in Build
	cmd.Env = c.env
	return cmd, nil
}

// resolve finds the binary on the command's own PATH rather than the
// daemon's, which is what exec.Command would consult.
func (c *Command) resolve() (string, error) {
	if strings.ContainsRune(c.name, filepath.Separator) {
		return c.name, nil
	}
	for _, kv := range c.env {
		if !strings.HasPrefix(kv, "PATH=") {
			continue
		}
		for _, dir := range filepath.SplitList(strings.TrimPrefix(kv, "PATH=")) {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, c.name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
				return candidate, nil
			}
		}
		return "", errors.Wrap(exec.ErrNotFound, errors.ErrCodeCommandNotFound, fmt.Sprintf("%s not found on PATH", c.name)).
			WithDetail("command", c.name)
	}
	if bin, err := exec.LookPath(c.name); err == nil {
		return bin, nil
	}
	return "", errors.Wrap(exec.ErrNotFound, errors.ErrCodeCommandNotFound, fmt.Sprintf("%s not found on PATH", c.name)).
		WithDetail("command", c.name)
}

// Result is the outcome of Run.
type Result struct {
	Stdout string
	Stderr string
}

// Run executes the command to completion within its timeout.
// Errors carry COMMAND_NOT_FOUND, COMMAND_TIMEOUT or COMMAND_FAILED.
func (c *Command) Run(ctx context.Context) (*Result, error) {
	bin, err := c.resolve()
	if err != nil {
		return &Result{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := c.executor.CommandContext(runCtx, bin, c.args...) //nolint:gosec // name validated in Build
	cmd.Env = c.env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := &Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return res, nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return res, errors.New(errors.ErrCodeCommandTimeout, fmt.Sprintf("%s timed out after %s", c.String(), c.timeout)).
			WithDetail("command", c.String())
	}
	if IsNotFound(err) {
		return res, errors.Wrap(err, errors.ErrCodeCommandNotFound, fmt.Sprintf("%s not found", c.name)).
			WithDetail("command", c.name)
	}
	return res, errors.CommandFailed(c.String(), err)
}

// IsNotFound reports whether err means the binary could not be located.
func IsNotFound(err error) bool {
	return stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, os.ErrNotExist)
}
