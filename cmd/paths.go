package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/claudemon/cli"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/paths"
)

// PathsOutput lists the locations claudemon reads and writes.
type PathsOutput struct {
	ConfigDir  string `json:"config_dir"`
	DataDir    string `json:"data_dir"`
	StateDir   string `json:"state_dir"`
	LogDir     string `json:"log_dir"`
	Socket     string `json:"socket"`
	PidFile    string `json:"pid_file"`
	Registry   string `json:"registry"`
	Workspaces string `json:"workspaces"`
	ClaudeHome string `json:"claude_home"`
}

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by claudemon",
		Long: `Print the paths used by claudemon. Configured locations (socket,
registry, workspaces, claude home) reflect the merged configuration.
Set CLAUDEMON_HOME to move every default under one directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			output := PathsOutput{
				ConfigDir:  paths.ConfigDir(),
				DataDir:    paths.DataDir(),
				StateDir:   paths.StateDir(),
				LogDir:     paths.LogDir(),
				Socket:     cfg.Daemon.Socket,
				PidFile:    paths.PidFilePath(),
				Registry:   cfg.Registry.Path,
				Workspaces: cfg.Registry.Workspaces,
				ClaudeHome: cfg.Registry.ClaudeHome,
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), output)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Path("Config", output.ConfigDir)
			pretty.Path("Data", output.DataDir)
			pretty.Path("State", output.StateDir)
			pretty.Path("Logs", output.LogDir)
			pretty.Path("Socket", output.Socket)
			pretty.Path("PID file", output.PidFile)
			pretty.Path("Registry", output.Registry)
			pretty.Path("Workspaces", output.Workspaces)
			pretty.Path("Claude home", output.ClaudeHome)
			return nil
		},
	}

	return cmd
}
