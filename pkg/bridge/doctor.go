package bridge

import (
	"context"
	"strings"

	"github.com/grovetools/claudemon/command"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/process"
)

// DoctorOptions configures Doctor.
type DoctorOptions struct {
	// NodeBin is the node binary to probe (default "node").
	NodeBin string
	// ClaudeBin is the agent CLI to probe (default "claude"). Its directory
	// is added to the search path.
	ClaudeBin string
	// SearchPath overrides the computed PATH directories.
	SearchPath []string
	// Executor replaces process execution, for tests.
	Executor command.Executor
}

type probe struct {
	label    string
	notFound string
	timeout  string
}

var (
	nodeProbe = probe{
		label:    "Node.js",
		notFound: "Node.js not found on PATH.",
		timeout:  "Timed out while checking Node.js.",
	}
	claudeProbe = probe{
		label:    "Claude Code CLI",
		notFound: "Claude Code CLI not found. Run 'npm install -g @anthropic-ai/claude-code'.",
		timeout:  "Timed out while checking Claude Code CLI.",
	}
)

// Doctor checks that node and the agent CLI run with the search path the
// bridge would be launched with. Each probe is bounded by
// command.DefaultTimeout.
func Doctor(ctx context.Context, opts DoctorOptions) models.DoctorResult {
	nodeBin := strings.TrimSpace(opts.NodeBin)
	if nodeBin == "" {
		nodeBin = "node"
	}
	claudeBin := strings.TrimSpace(opts.ClaudeBin)
	if claudeBin == "" {
		claudeBin = "claude"
	}
	dirs := opts.SearchPath
	if dirs == nil {
		dirs = process.BuildSearchPath(process.SearchPathOptions{AgentBin: opts.ClaudeBin})
	}

	builder := command.NewBuilder()
	if opts.Executor != nil {
		builder = command.NewBuilderWithExecutor(opts.Executor)
	}
	builder.WithSearchPath(dirs).WithTimeout(command.DefaultTimeout)

	var result models.DoctorResult
	result.NodeOK, result.NodeVersion, result.NodeDetails = runProbe(ctx, builder, nodeBin, nodeProbe)
	result.ClaudeOK, result.ClaudeVersion, result.ClaudeDetails = runProbe(ctx, builder, claudeBin, claudeProbe)
	result.OK = result.NodeOK && result.ClaudeOK
	result.Path = models.StringPtr(builder.SearchPath())
	return result
}

func runProbe(ctx context.Context, builder *command.Builder, bin string, p probe) (bool, *string, *string) {
	cmd, err := builder.Build(bin, "--version")
	if err != nil {
		return false, nil, models.StringPtr(err.Error())
	}
	res, err := cmd.Run(ctx)
	switch {
	case err == nil:
		version := models.StringPtr(res.Stdout)
		return version != nil, version, nil
	case errors.Is(err, errors.ErrCodeCommandNotFound):
		return false, nil, models.StringPtr(p.notFound)
	case errors.Is(err, errors.ErrCodeCommandTimeout):
		return false, nil, models.StringPtr(p.timeout)
	default:
		if res != nil && res.Stderr != "" {
			return false, nil, models.StringPtr(res.Stderr)
		}
		return false, nil, models.StringPtr(err.Error())
	}
}
