package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/claudemon/cli"
	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/registry"
	"github.com/grovetools/claudemon/pkg/sessions"
)

// NewSessionsCmd groups the session registry commands.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"s"},
		Short:   "List, archive and import agent sessions",
		Long: `Manage the per-workspace session registry.

Examples:
  claudemon sessions list ws-1
  claudemon sessions import ws-1
  claudemon sessions history ws-1 6f1c... --follow`,
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsArchivedCmd())
	cmd.AddCommand(newSessionsArchiveCmd(true))
	cmd.AddCommand(newSessionsArchiveCmd(false))
	cmd.AddCommand(newSessionsScanCmd())
	cmd.AddCommand(newSessionsImportCmd())
	cmd.AddCommand(newSessionsHistoryCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <workspace-id>",
		Short: "List a workspace's visible sessions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			list, err := client.ListSessions(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), list, cli.GetOptions(cmd).JSONOutput)
		},
	}
}

func newSessionsArchivedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archived <workspace-id>",
		Short: "List sessions archived in a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			list, err := client.ListSessions(cmd.Context(), args[0], true)
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), list, cli.GetOptions(cmd).JSONOutput)
		},
	}
}

func newSessionsArchiveCmd(archive bool) *cobra.Command {
	use, short, done := "archive", "Hide a session from the workspace list", "Archived"
	if !archive {
		use, short, done = "unarchive", "Show an archived session again", "Restored"
	}
	return &cobra.Command{
		Use:   use + " <workspace-id> <session-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if archive {
				err = client.Archive(cmd.Context(), args[0], args[1])
			} else {
				err = client.Unarchive(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success(fmt.Sprintf("%s %s", done, args[1]))
			return nil
		},
	}
}

func newSessionsScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <workspace-id>",
		Short: "List transcripts on disk for a workspace without registering them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			found, err := client.Scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), found, cli.GetOptions(cmd).JSONOutput)
		},
	}
}

func newSessionsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <workspace-id>",
		Short: "Register every transcript found for a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			found, err := client.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), found)
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success(fmt.Sprintf("Imported %d sessions", len(found)))
			return nil
		},
	}
}

func newSessionsHistoryCmd() *cobra.Command {
	var follow, fromEnd, poll bool
	cmd := &cobra.Command{
		Use:   "history <workspace-id> <session-id>",
		Short: "Print a session's conversation",
		Long: `Print the user and assistant messages of a session's transcript. With
--follow, new messages are printed as the agent writes them.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if follow {
				return followHistory(cmd, cfg, args[1], fromEnd, poll)
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			history, err := client.History(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), history)
			}
			if history.Status == models.SessionMissing {
				fmt.Fprintln(cmd.OutOrStdout(), cli.DefaultTheme.Warning.Render("Transcript is missing"))
				return nil
			}
			for _, item := range history.Items {
				printHistoryItem(cmd.OutOrStdout(), item)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new messages")
	cmd.Flags().BoolVar(&fromEnd, "from-end", false, "With --follow, skip messages already written")
	cmd.Flags().BoolVar(&poll, "poll", false, "With --follow, poll instead of using inotify")
	return cmd
}

// followHistory resolves the transcript from threads.json without writing
// to it, since the daemon may own the file.
func followHistory(cmd *cobra.Command, cfg *config.Config, sessionID string, fromEnd, poll bool) error {
	reg, err := registry.Open(cfg.Registry.Path, registry.WithClaudeHome(cfg.Registry.ClaudeHome))
	if err != nil {
		return err
	}
	entry, ok := reg.Session(sessionID)
	if !ok {
		return errors.SessionNotFound(sessionID)
	}
	transcript := models.Deref(entry.TranscriptPath)
	if transcript == "" {
		transcript, _ = sessions.DerivePaths(cfg.Registry.ClaudeHome, entry.Cwd, sessionID)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	asJSON := cli.GetOptions(cmd).JSONOutput
	return sessions.Follow(ctx, sessionID, transcript, sessions.FollowOptions{FromEnd: fromEnd, Poll: poll}, func(item models.HistoryItem) {
		if asJSON {
			_ = printJSON(cmd.OutOrStdout(), item)
			return
		}
		printHistoryItem(cmd.OutOrStdout(), item)
	})
}
