package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	maxHelpWidth = 80
	minHelpWidth = 40
)

// SetStyledHelp replaces cobra's help output for cmd.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		RenderHelp(c.OutOrStdout(), c, helpWidth())
	})
}

// ApplyStyledHelpRecursive applies styled help to cmd and every subcommand.
// Usage is suppressed on errors; Execute prints the error with a hint.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	SetStyledHelp(cmd)
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

func helpWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minHelpWidth {
		return maxHelpWidth
	}
	return min(width, maxHelpWidth)
}

// RenderHelp writes the help page for cmd, wrapping prose at width.
func RenderHelp(w io.Writer, cmd *cobra.Command, width int) {
	t := DefaultTheme
	section := lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Orange)
	name := lipgloss.NewStyle().Foreground(t.Colors.Blue)
	flagName := lipgloss.NewStyle().Foreground(t.Colors.Violet)
	prose := lipgloss.NewStyle().Width(width - 2)

	fmt.Fprintln(w, " "+t.Header.Render(strings.ToUpper(cmd.CommandPath())))
	if cmd.Short != "" {
		fmt.Fprintln(w, indent(t.Italic.Render(prose.Render(cmd.Short))))
	}

	description, examples := splitExamples(cmd.Long)
	if description != "" && description != cmd.Short {
		fmt.Fprintln(w)
		fmt.Fprintln(w, indent(prose.Render(description)))
	}

	if cmd.Runnable() || cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, "\n "+section.Render("USAGE"))
		if cmd.Runnable() {
			fmt.Fprintln(w, " "+cmd.UseLine())
		}
		if cmd.HasAvailableSubCommands() {
			fmt.Fprintf(w, " %s [command]\n", cmd.CommandPath())
		}
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, "\n "+section.Render("COMMANDS"))
		var subs []*cobra.Command
		pad := 0
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				subs = append(subs, sub)
				pad = max(pad, len(sub.Name()))
			}
		}
		for _, sub := range subs {
			line := fmt.Sprintf(" %s%s  %s", name.Render(sub.Name()), strings.Repeat(" ", pad-len(sub.Name())), sub.Short)
			if len(sub.Aliases) > 0 {
				line += t.Muted.Render(" (" + strings.Join(sub.Aliases, ", ") + ")")
			}
			fmt.Fprintln(w, line)
		}
	}

	if flags := visibleFlags(cmd.LocalFlags()); len(flags) > 0 {
		fmt.Fprintln(w, "\n "+section.Render("FLAGS"))
		pad := 0
		for _, f := range flags {
			pad = max(pad, len(flagLabel(f)))
		}
		for _, f := range flags {
			label := flagLabel(f)
			usage := f.Usage
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" && f.DefValue != "0" {
				usage += t.Muted.Render(fmt.Sprintf(" (default %s)", f.DefValue))
			}
			fmt.Fprintf(w, " %s%s  %s\n", flagName.Render(label), strings.Repeat(" ", pad-len(label)), usage)
		}
	}

	if inherited := visibleFlags(cmd.InheritedFlags()); len(inherited) > 0 {
		names := make([]string, 0, len(inherited))
		for _, f := range inherited {
			names = append(names, "--"+f.Name)
		}
		fmt.Fprintln(w, "\n "+t.Muted.Render("Global flags: "+strings.Join(names, ", ")))
	}

	if cmd.Example != "" {
		examples = cmd.Example
	}
	if examples != "" {
		fmt.Fprintln(w, "\n "+section.Render("EXAMPLES"))
		for _, line := range strings.Split(examples, "\n") {
			fmt.Fprintln(w, " "+styleExample(strings.TrimSpace(line), cmd.Root().Name()))
		}
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

// splitExamples separates an "Examples:" block from a long description.
func splitExamples(long string) (description, examples string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return strings.TrimSpace(long), ""
}

// styleExample colors the program name and the subcommand of an example
// line. Comment lines are muted.
func styleExample(line, root string) string {
	t := DefaultTheme
	if line == "" {
		return ""
	}
	if strings.HasPrefix(line, "#") {
		return " " + t.Muted.Render(line)
	}
	parts := strings.Fields(line)
	for i, part := range parts {
		switch {
		case i == 0 && part == root:
			parts[i] = t.Accent.Render(part)
		case strings.HasPrefix(part, "-"):
			parts[i] = lipgloss.NewStyle().Foreground(t.Colors.Violet).Render(part)
		case i == 1:
			parts[i] = lipgloss.NewStyle().Foreground(t.Colors.Blue).Render(part)
		}
	}
	return " " + strings.Join(parts, " ")
}

func visibleFlags(set *pflag.FlagSet) []*pflag.Flag {
	var flags []*pflag.Flag
	set.VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			flags = append(flags, f)
		}
	})
	return flags
}

func flagLabel(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}

func indent(block string) string {
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = " " + strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}
