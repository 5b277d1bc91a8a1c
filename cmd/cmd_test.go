package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/sessions"
	"github.com/grovetools/claudemon/testutil"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// workspaceWithTranscripts registers ws-1 and writes two transcripts for it.
func workspaceWithTranscripts(t *testing.T) {
	t.Helper()
	claudeHome := testutil.IsolateHome(t)
	project := filepath.Join(t.TempDir(), "project")
	require.NoError(t, os.MkdirAll(project, 0o755))

	cfg := config.Default()
	testutil.WriteWorkspaces(t, cfg.Registry.Workspaces, models.WorkspaceEntry{ID: "ws-1", Name: "project", Path: project})

	dir := sessions.ProjectDir(claudeHome, project)
	testutil.WriteTranscript(t, dir, "older", time.Now().Add(-2*time.Hour),
		testutil.UserLine(project, "u1", "first question"))
	testutil.WriteTranscript(t, dir, "newer", time.Now().Add(-time.Minute),
		testutil.UserLine(project, "u2", "second question"),
		testutil.AssistantLine(project, "a2", "an answer"))
}

func TestSessionsImportAndList(t *testing.T) {
	workspaceWithTranscripts(t)

	out, err := runCLI(t, "sessions", "import", "ws-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 sessions")

	out, err = runCLI(t, "sessions", "list", "ws-1", "--json")
	require.NoError(t, err)
	var list []models.SessionEntry
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].SessionID)

	out, err = runCLI(t, "sessions", "list", "ws-1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "SESSION\tSTATUS\tACTIVE\tPREVIEW", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "newer\tactive\t"))

	_, err = runCLI(t, "sessions", "archive", "ws-1", "older")
	require.NoError(t, err)
	out, err = runCLI(t, "sessions", "archived", "ws-1", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "older", list[0].SessionID)

	out, err = runCLI(t, "sessions", "history", "ws-1", "newer")
	require.NoError(t, err)
	assert.Contains(t, out, "second question")
	assert.Contains(t, out, "an answer")
}

func TestSessionsErrors(t *testing.T) {
	workspaceWithTranscripts(t)

	_, err := runCLI(t, "sessions", "unarchive", "ws-1", "ghost")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	_, err = runCLI(t, "sessions", "scan", "nope")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	_, err = runCLI(t, "sessions", "list")
	assert.Error(t, err)
}

func TestRPCRejectsBadParams(t *testing.T) {
	testutil.IsolateHome(t)

	_, err := runCLI(t, "rpc", "model/list", "{not json")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = runCLI(t, "rpc", "message/send", `{"sessionId":"s1"}`)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestConfigValidate(t *testing.T) {
	testutil.IsolateHome(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yml")
	require.NoError(t, os.WriteFile(good, []byte("agent:\n  init_timeout: 10s\n"), 0o644))
	out, err := runCLI(t, "config", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("agent:\n  no_such_key: 1\n"), 0o644))
	_, err = runCLI(t, "config", "validate", bad)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation))

	out, err = runCLI(t, "config", "schema")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestPathsJSON(t *testing.T) {
	testutil.IsolateHome(t)
	home := os.Getenv("CLAUDEMON_HOME")

	out, err := runCLI(t, "paths", "--json")
	require.NoError(t, err)
	var got PathsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, filepath.Join(home, "config"), got.ConfigDir)
	assert.True(t, strings.HasPrefix(got.Registry, home))
	assert.Equal(t, os.Getenv("CLAUDE_CONFIG_DIR"), got.ClaudeHome)
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAge(now.Add(-tt.ago).UnixMilli(), now))
		})
	}
	assert.Equal(t, "-", formatAge(0, now))

	old := now.Add(-60 * 24 * time.Hour)
	assert.Equal(t, old.Local().Format("2006-01-02"), formatAge(old.UnixMilli(), now))
}

func TestReadParams(t *testing.T) {
	got, err := readParams(nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))

	got, err = readParams(strings.NewReader(`{"sessionId":"s1"}`), []string{"-"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionId":"s1"}`, string(got))

	_, err = readParams(nil, []string{"nope"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestPrintEvents(t *testing.T) {
	events := make(chan models.BridgeEvent, 4)
	events <- models.NewEvent("message/delta", "other", "", nil)
	events <- models.NewEvent("message/delta", "s1", "", map[string]string{"text": "hi"})
	events <- models.NewEvent(models.EventResult, "s1", "", nil)
	events <- models.NewEvent("message/delta", "s1", "", nil)

	var out bytes.Buffer
	require.NoError(t, printEvents(context.Background(), &out, events, "s1", true))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"text":"hi"`)
	assert.Contains(t, lines[1], `"type":"result"`)
	assert.Len(t, events, 1, "stops after the result")
}
