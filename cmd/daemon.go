package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/claudemon/cli"
	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/internal/daemon/app"
	"github.com/grovetools/claudemon/internal/daemon/collector"
	"github.com/grovetools/claudemon/internal/daemon/engine"
	"github.com/grovetools/claudemon/internal/daemon/pidfile"
	"github.com/grovetools/claudemon/internal/daemon/server"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/daemon"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/paths"
	"github.com/grovetools/claudemon/version"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the claudemon daemon",
		Long:  "The daemon owns the agent bridge and the session registry and serves them over a Unix socket.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the claudemon daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			if logFile != "" {
				if err := logging.AddFileSink(logFile); err != nil {
					return err
				}
			}

			logger := logging.NewLogger("daemon")
			pidPath := paths.PidFilePath()

			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}

			eng := engine.New(a.Events, logging.NewLogger("engine"))
			eng.Register(collector.NewTranscriptCollector(a.Registry, cfg.Daemon.TranscriptInterval.Std()))
			eng.Register(collector.NewWorkspaceCollector(a.Workspaces, 0))

			srv := server.New(a, logging.NewLogger("server"))
			srv.SetRunningConfig(&server.RunningConfig{
				Socket:             cfg.Daemon.Socket,
				Registry:           cfg.Registry.Path,
				Workspaces:         cfg.Registry.Workspaces,
				ClaudeHome:         cfg.Registry.ClaudeHome,
				EventBuffer:        cfg.Daemon.EventBuffer,
				InitTimeout:        cfg.Agent.InitTimeout.Std(),
				TranscriptInterval: cfg.Daemon.TranscriptInterval.Std(),
				StartedAt:          time.Now(),
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			watcher, err := daemon.NewConfigWatcher(paths.ConfigDir(), 0, func(file string) {
				reloaded, err := cli.LoadConfig(cmd)
				if err != nil {
					logger.WithError(err).Warn("Ignoring invalid configuration")
					return
				}
				a.Reload(reloaded)
				a.Events.Publish(models.NewEvent(models.EventConfigReloaded, "", "", map[string]string{"file": file}))
			})
			if err != nil {
				logger.WithError(err).Warn("Config reload disabled")
			} else {
				go watcher.Start(ctx)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
				defer shutdownCancel()

				if err := a.Close(); err != nil {
					logger.Errorf("Bridge shutdown error: %v", err)
				}
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			go eng.Start(ctx)

			logger.WithFields(logrus.Fields{
				"pid":     os.Getpid(),
				"socket":  cfg.Daemon.Socket,
				"version": version.GetInfo().String(),
			}).Info("Starting daemon")
			if err := srv.ListenAndServe(cfg.Daemon.Socket); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("Daemon stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Also write logs to this file")
	return cmd
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if d := cfg.Daemon.ShutdownTimeout.Std(); d > 0 {
		return d
	}
	return 5 * time.Second
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			pidPath := paths.PidFilePath()
			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				os.Exit(1)
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Field("Running", fmt.Sprintf("PID %d", pid))
			pretty.Path("Socket", cfg.Daemon.Socket)
			pretty.Path("Registry", cfg.Registry.Path)
			pretty.Path("Logs", paths.LogDir())
			if daemon.Dial(cfg.Daemon.Socket) == nil {
				pretty.WarnPretty("Process is alive but the socket is not answering")
			}
			return nil
		},
	}
}
