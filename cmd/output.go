package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/grovetools/claudemon/cli"
	"github.com/grovetools/claudemon/pkg/models"
)

const previewWidth = 60

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatAge renders an epoch-millisecond timestamp relative to now.
func formatAge(ms int64, now time.Time) string {
	if ms <= 0 {
		return "-"
	}
	d := now.Sub(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
	return time.UnixMilli(ms).Format("2006-01-02")
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printSessions(w io.Writer, list []models.SessionEntry, asJSON bool) error {
	if asJSON {
		return printJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, cli.DefaultTheme.Muted.Render("No sessions"))
		return nil
	}
	now := time.Now()
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			s.SessionID,
			string(s.Status),
			formatAge(s.LastActivity, now),
			shorten(models.Deref(s.Preview), previewWidth),
		})
	}
	cli.RenderTable(w, []string{"SESSION", "STATUS", "ACTIVE", "PREVIEW"}, rows)
	return nil
}

func printHistoryItem(w io.Writer, item models.HistoryItem) {
	t := cli.DefaultTheme
	role := t.Accent.Render(item.Role)
	if item.Role == "user" {
		role = t.Header.Render(item.Role)
	}
	fmt.Fprintf(w, "%s %s\n%s\n\n", role, t.Muted.Render(item.ID), item.Text)
}
