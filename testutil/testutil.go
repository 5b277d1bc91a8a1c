// Package testutil holds fixtures shared by package tests: isolated state
// directories, transcript writers, registry fixtures and a fake agent.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/pkg/models"
)

// IsolateHome points CLAUDEMON_HOME and CLAUDE_CONFIG_DIR at fresh temp
// directories and returns the claude home.
func IsolateHome(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	claudeHome := filepath.Join(root, "claude")
	require.NoError(t, os.MkdirAll(claudeHome, 0o755))
	t.Setenv("CLAUDEMON_HOME", filepath.Join(root, "claudemon"))
	t.Setenv("CLAUDE_CONFIG_DIR", claudeHome)
	return claudeHome
}

// RandomString returns a random hex string of the given length.
func RandomString(length int) string {
	b := make([]byte, length/2+1)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:length]
}

// UserLine renders a user transcript entry with text content items.
func UserLine(cwd, uuid string, texts ...string) string {
	return transcriptLine("user", cwd, uuid, texts)
}

// AssistantLine renders an assistant transcript entry.
func AssistantLine(cwd, uuid string, texts ...string) string {
	return transcriptLine("assistant", cwd, uuid, texts)
}

func transcriptLine(kind, cwd, uuid string, texts []string) string {
	content := make([]map[string]string, 0, len(texts))
	for _, text := range texts {
		content = append(content, map[string]string{"type": "text", "text": text})
	}
	entry := map[string]interface{}{
		"type":    kind,
		"message": map[string]interface{}{"role": kind, "content": content},
	}
	if cwd != "" {
		entry["cwd"] = cwd
	}
	if uuid != "" {
		entry["uuid"] = uuid
	}
	data, err := json.Marshal(entry)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// WriteTranscript writes lines to <dir>/<sessionID>.jsonl and sets its
// modification time. It returns the file path.
func WriteTranscript(t *testing.T, dir, sessionID string, modTime time.Time, lines ...string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, sessionID+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	if !modTime.IsZero() {
		require.NoError(t, os.Chtimes(path, modTime, modTime))
	}
	return path
}

// SessionFixture returns an active session entry with fixed timestamps.
func SessionFixture(id, cwd string) models.SessionEntry {
	return models.SessionEntry{
		SessionID:    id,
		Cwd:          cwd,
		Preview:      models.StringPtr("preview of " + id),
		CreatedAt:    1700000000000,
		LastActivity: 1700000001000,
		Status:       models.SessionActive,
	}
}

// WriteWorkspaces writes a workspaces.json file with the given entries.
func WriteWorkspaces(t *testing.T, path string, entries ...models.WorkspaceEntry) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.MarshalIndent(entries, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
