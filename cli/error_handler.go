package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/claudemon/errors"
)

// ErrorHandler prints user-facing messages for CLI errors.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates an error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints err with a hint for the codes a user can act on and
// returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := DefaultTheme
	fmt.Fprintf(h.Out, "%s %v\n", t.Error.Render("Error:"), err)
	if hint := Hint(err); hint != "" {
		fmt.Fprintln(h.Out, t.Muted.Render(hint))
	}

	if h.Verbose {
		if groveErr, ok := err.(*errors.GroveError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", groveErr.ToJSON())
		}
	}
	return err
}

// Hint suggests a next step for err, or returns "".
func Hint(err error) string {
	switch errors.GetCode(err) {
	case errors.ErrCodeDaemonNotRunning:
		return "The daemon is not reachable. Start it with 'claudemon daemon start'."
	case errors.ErrCodeSpawnFailed, errors.ErrCodeCommandNotFound:
		return "The agent bridge could not be started. Run 'claudemon doctor' to check Node.js and Claude Code."
	case errors.ErrCodeNoSession:
		return "Start a session first with 'claudemon rpc session/start'."
	case errors.ErrCodeTimeout:
		if groveErr, ok := err.(*errors.GroveError); ok {
			if after, ok := groveErr.Details["timeout"]; ok {
				return fmt.Sprintf("The agent did not answer within %v. Raise agent.init_timeout if it starts slowly.", after)
			}
		}
		return "The agent did not answer in time."
	case errors.ErrCodeCancelled, errors.ErrCodeTransport:
		return "The agent bridge exited. Check 'claudemon status' and the daemon log."
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		return "Fix the configuration file, or print the schema with 'claudemon config schema'."
	case errors.ErrCodeNotFound:
		return "List known sessions with 'claudemon sessions list <workspace>'."
	}
	return ""
}
