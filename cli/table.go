package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// RenderTable writes rows under headers. Borders and colors are only used
// when w is a terminal; otherwise rows are tab separated for scripts.
func RenderTable(w io.Writer, headers []string, rows [][]string) {
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		writeTSV(w, headers, rows)
		return
	}

	t := DefaultTheme
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true).Foreground(t.Colors.Orange)
			}
			return style
		})
	_, _ = io.WriteString(w, tbl.Render()+"\n")
}

func writeTSV(w io.Writer, headers []string, rows [][]string) {
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				_, _ = io.WriteString(w, "\t")
			}
			_, _ = io.WriteString(w, cell)
		}
		_, _ = io.WriteString(w, "\n")
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
}
