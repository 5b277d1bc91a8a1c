package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grovetools/claudemon/cli"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/bridge"
	"github.com/grovetools/claudemon/pkg/daemon"
	"github.com/grovetools/claudemon/pkg/models"
)

// NewStatusCmd reports the bridge state.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the agent bridge status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			st, err := client.BridgeStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printStatus(cmd, st, client.IsRunning())
		},
	}
}

func printStatus(cmd *cobra.Command, st bridge.Status, viaDaemon bool) error {
	if cli.GetOptions(cmd).JSONOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}
	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	mode := "in-process"
	if viaDaemon {
		mode = "daemon"
	}
	state := "not running"
	if st.Connected {
		state = "connected"
	}
	pretty.Check(st.Connected, "Bridge", state, "")
	pretty.Field("Mode", mode)
	if st.Connected {
		pretty.Field("PID", st.PID)
		pretty.Field("Sessions", st.Sessions)
		pretty.Field("Pending", st.Pending)
		if st.Command != "" {
			pretty.Field("Command", st.Command)
		}
	}
	return nil
}

// NewConnectCmd starts the bridge.
func NewConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Start the agent bridge and complete the handshake",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			st, err := client.Connect(cmd.Context())
			if err != nil {
				return err
			}
			return printStatus(cmd, st, client.IsRunning())
		},
	}
}

// NewDisconnectCmd stops the bridge.
func NewDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Stop the agent bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Disconnect(cmd.Context()); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Bridge stopped")
			return nil
		},
	}
}

// NewDoctorCmd checks the agent toolchain.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that Node.js and Claude Code are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Doctor(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Check(res.NodeOK, "Node.js", models.Deref(res.NodeVersion), models.Deref(res.NodeDetails))
			pretty.Check(res.ClaudeOK, "Claude Code", models.Deref(res.ClaudeVersion), models.Deref(res.ClaudeDetails))
			if path := models.Deref(res.Path); path != "" {
				pretty.List("Search path", strings.Split(path, string(os.PathListSeparator)))
			}
			if !res.OK {
				return errors.New(errors.ErrCodeCommandNotFound, "agent toolchain is incomplete")
			}
			return nil
		},
	}
}

// NewSendCmd sends a user message to a session.
func NewSendCmd() *cobra.Command {
	var workspaceID string
	var wait bool
	cmd := &cobra.Command{
		Use:   "send <session-id> <message>",
		Short: "Send a message to a session",
		Long: `Send a message to a running session. With --wait the session's events are
printed until the turn produces a result.

Examples:
  claudemon send 6f1c... "summarize the failing tests"
  claudemon send 6f1c... --wait "and fix them"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var events <-chan models.BridgeEvent
			if wait {
				if events, err = client.StreamEvents(ctx); err != nil {
					return err
				}
			}

			params, err := json.Marshal(bridge.SendMessageParams{
				SessionID:   args[0],
				WorkspaceID: workspaceID,
				Message:     strings.Join(args[1:], " "),
				MessageID:   models.StringPtr(uuid.NewString()),
			})
			if err != nil {
				return err
			}
			result, err := client.Call(ctx, bridge.MethodMessageSend, params)
			if err != nil {
				return err
			}
			if !wait {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(result))
				return err
			}
			return printEvents(ctx, cmd.OutOrStdout(), events, args[0], true)
		},
	}
	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace the session belongs to")
	cmd.Flags().BoolVar(&wait, "wait", false, "Print the session's events until the turn finishes")
	return cmd
}

// NewInterruptCmd stops the turn in progress.
func NewInterruptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interrupt <session-id>",
		Short: "Interrupt the running turn of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			params, err := json.Marshal(bridge.InterruptParams{SessionID: args[0]})
			if err != nil {
				return err
			}
			if _, err := client.Call(cmd.Context(), bridge.MethodMessageInterrupt, params); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Interrupted " + args[0])
			return nil
		},
	}
}

// NewRPCCmd sends any outbound method with raw JSON params.
func NewRPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rpc <method> [params-json|-]",
		Short: "Call a bridge method with JSON params",
		Long: `Call any bridge method. Params are validated before anything is sent.
Pass - to read params from stdin.

Examples:
  claudemon rpc session/start '{"workspaceId":"ws-1"}'
  claudemon rpc model/list
  echo '{"sessionId":"6f1c..."}' | claudemon rpc mcp/status -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readParams(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.Call(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			var pretty interface{}
			if json.Unmarshal(result, &pretty) == nil {
				return printJSON(cmd.OutOrStdout(), pretty)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return err
		},
	}
}

// readParams returns the params argument, stdin for "-", or an empty object.
func readParams(stdin io.Reader, args []string) (json.RawMessage, error) {
	if len(args) == 0 || args[0] == "" {
		return json.RawMessage("{}"), nil
	}
	data := []byte(args[0])
	if args[0] == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, err
		}
	}
	if !json.Valid(data) {
		return nil, errors.InvalidInput("params", "not valid JSON")
	}
	return json.RawMessage(data), nil
}

// NewEventsCmd streams bridge events as JSON lines.
func NewEventsCmd() *cobra.Command {
	var sessionID string
	var useWS bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream bridge events as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			var events <-chan models.BridgeEvent
			if useWS {
				remote, ok := client.(*daemon.RemoteClient)
				if !ok {
					return errors.New(errors.ErrCodeDaemonNotRunning, "--ws needs a running daemon")
				}
				events, err = remote.StreamEventsWS(ctx)
			} else {
				events, err = client.StreamEvents(ctx)
			}
			if err != nil {
				return err
			}
			return printEvents(ctx, cmd.OutOrStdout(), events, sessionID, false)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Only print events for this session")
	cmd.Flags().BoolVar(&useWS, "ws", false, "Use the daemon websocket instead of SSE")
	return cmd
}

// printEvents writes events as JSON lines until ctx ends or the stream
// closes. With untilResult it also stops after the session's result or
// error event.
func printEvents(ctx context.Context, w io.Writer, events <-chan models.BridgeEvent, sessionID string, untilResult bool) error {
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if sessionID != "" && ev.SessionID != sessionID {
				continue
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
			if untilResult && (ev.Type == models.EventResult || ev.Type == models.EventError) {
				return nil
			}
		}
	}
}
