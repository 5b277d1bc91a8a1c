package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors is the palette used for CLI output.
type Colors struct {
	Green     lipgloss.TerminalColor
	Yellow    lipgloss.TerminalColor
	Red       lipgloss.TerminalColor
	Orange    lipgloss.TerminalColor
	Cyan      lipgloss.TerminalColor
	Blue      lipgloss.TerminalColor
	Violet    lipgloss.TerminalColor
	MutedText lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
}

// Theme holds the styles shared by help, tables and status output.
type Theme struct {
	Colors Colors

	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Bold    lipgloss.Style
	Italic  lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
}

// DefaultTheme is selected once from CLAUDEMON_THEME ("kanagawa" or
// "terminal").
var DefaultTheme = NewTheme(themeColors(os.Getenv("CLAUDEMON_THEME")))

func themeColors(name string) Colors {
	if strings.EqualFold(strings.TrimSpace(name), "terminal") {
		return Colors{
			Green:     lipgloss.Color("2"),
			Yellow:    lipgloss.Color("3"),
			Red:       lipgloss.Color("1"),
			Orange:    lipgloss.Color("208"),
			Cyan:      lipgloss.Color("6"),
			Blue:      lipgloss.Color("4"),
			Violet:    lipgloss.Color("5"),
			MutedText: lipgloss.Color("8"),
			Border:    lipgloss.Color("8"),
		}
	}
	return Colors{
		Green:     lipgloss.AdaptiveColor{Light: "#4E7C5A", Dark: "#98BB6C"},
		Yellow:    lipgloss.AdaptiveColor{Light: "#A68A64", Dark: "#FF9E3B"},
		Red:       lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
		Orange:    lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
		Cyan:      lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"},
		Blue:      lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
		Violet:    lipgloss.AdaptiveColor{Light: "#674D7A", Dark: "#957FB8"},
		MutedText: lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#727169"},
		Border:    lipgloss.AdaptiveColor{Light: "#B5BDC5", Dark: "#363646"},
	}
}

// NewTheme builds the styles for a palette.
func NewTheme(c Colors) *Theme {
	return &Theme{
		Colors:  c,
		Header:  lipgloss.NewStyle().Bold(true).Foreground(c.Orange),
		Success: lipgloss.NewStyle().Foreground(c.Green),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(c.Red),
		Warning: lipgloss.NewStyle().Foreground(c.Yellow),
		Bold:    lipgloss.NewStyle().Bold(true),
		Italic:  lipgloss.NewStyle().Italic(true),
		Muted:   lipgloss.NewStyle().Foreground(c.MutedText),
		Accent:  lipgloss.NewStyle().Foreground(c.Cyan),
	}
}
