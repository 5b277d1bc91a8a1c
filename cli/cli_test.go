package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/grovetools/claudemon/errors"
)

func TestRenderHelp(t *testing.T) {
	root := NewStandardCommand("claudemon", "Supervise the agent")
	sessions := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"s"},
		Short:   "Manage sessions",
		Long: `Manage the session registry.

Examples:
  # list one workspace
  claudemon sessions list ws-1`,
	}
	list := &cobra.Command{Use: "list <workspace-id>", Short: "List sessions", RunE: func(*cobra.Command, []string) error { return nil }}
	list.Flags().Bool("archived", false, "Show archived sessions")
	sessions.AddCommand(list)
	root.AddCommand(sessions)

	var out bytes.Buffer
	RenderHelp(&out, sessions, 80)
	help := out.String()
	assert.Contains(t, help, "CLAUDEMON SESSIONS")
	assert.Contains(t, help, "Manage the session registry.")
	assert.Contains(t, help, "COMMANDS")
	assert.Contains(t, help, "list")
	assert.Contains(t, help, "EXAMPLES")
	assert.Contains(t, help, "# list one workspace")
	assert.Contains(t, help, "Global flags: --config, --json, --verbose")
	assert.NotContains(t, help, "Examples:")

	out.Reset()
	RenderHelp(&out, list, 80)
	assert.Contains(t, out.String(), "--archived")
	assert.Contains(t, out.String(), "Show archived sessions")
}

func TestSplitExamples(t *testing.T) {
	desc, ex := splitExamples("Does things.\n\nExample:\n  claudemon run")
	assert.Equal(t, "Does things.", desc)
	assert.Equal(t, "claudemon run", ex)

	desc, ex = splitExamples("  Only prose.  ")
	assert.Equal(t, "Only prose.", desc)
	assert.Empty(t, ex)
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"daemon", errors.New(errors.ErrCodeDaemonNotRunning, "down"), "claudemon daemon start"},
		{"spawn", errors.New(errors.ErrCodeSpawnFailed, "no node"), "claudemon doctor"},
		{"timeout", errors.New(errors.ErrCodeTimeout, "slow").WithDetail("timeout", "30s"), "within 30s"},
		{"config", errors.New(errors.ErrCodeConfigValidation, "bad"), "claudemon config schema"},
		{"plain", assert.AnError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := Hint(tt.err)
			if tt.want == "" {
				assert.Empty(t, hint)
				return
			}
			assert.Contains(t, hint, tt.want)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	var out bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &out}
	err := errors.New(errors.ErrCodeNoSession, "No active Claude session found")

	assert.Equal(t, err, h.Handle(err))
	text := out.String()
	assert.Contains(t, text, "No active Claude session found")
	assert.Contains(t, text, "session/start")
	assert.True(t, strings.Contains(text, `"code"`) || strings.Contains(text, "NO_ACTIVE_SESSION"))
	assert.Nil(t, h.Handle(nil))
}

func TestWriteTSV(t *testing.T) {
	var out bytes.Buffer
	RenderTable(&out, []string{"A", "B"}, [][]string{{"1", "2"}, {"3", "4"}})
	assert.Equal(t, "A\tB\n1\t2\n3\t4\n", out.String())
}
