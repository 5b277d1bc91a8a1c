// Package cmd implements the claudemon command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/claudemon/cli"
	"github.com/grovetools/claudemon/pkg/daemon"
)

// NewRootCmd builds the full claudemon command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"claudemon",
		"Supervise the Claude agent bridge and manage its sessions",
	)

	rootCmd.AddCommand(NewDaemonCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewConnectCmd())
	rootCmd.AddCommand(NewDisconnectCmd())
	rootCmd.AddCommand(NewDoctorCmd())
	rootCmd.AddCommand(NewSendCmd())
	rootCmd.AddCommand(NewInterruptCmd())
	rootCmd.AddCommand(NewRPCCmd())
	rootCmd.AddCommand(NewEventsCmd())
	rootCmd.AddCommand(NewSessionsCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewPathsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("claudemon"))

	cli.ApplyStyledHelpRecursive(rootCmd)
	return rootCmd
}

// Execute runs the root command and prints any error with a hint.
func Execute() error {
	rootCmd := NewRootCmd()
	executed, err := rootCmd.ExecuteC()
	if err != nil {
		cli.NewErrorHandler(cli.GetOptions(executed).Verbose).Handle(err)
	}
	return err
}

// newClient connects to the daemon when it is running and otherwise runs
// the bridge in-process.
func newClient(cmd *cobra.Command) (daemon.Client, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	client, err := daemon.New(cfg)
	if err != nil {
		return nil, err
	}
	logger := cli.GetLogger(cmd)
	if _, remote := client.(*daemon.RemoteClient); remote {
		logger.WithField("socket", cfg.Daemon.Socket).Debug("Using running daemon")
	} else {
		logger.Debug("No daemon running, using an in-process bridge")
	}
	return client, nil
}
