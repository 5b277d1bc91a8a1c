package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/pkg/models"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0755))
}

func TestDoctorNothingInstalled(t *testing.T) {
	dir := t.TempDir()
	res := Doctor(context.Background(), DoctorOptions{SearchPath: []string{dir}})

	assert.False(t, res.OK)
	assert.False(t, res.NodeOK)
	assert.False(t, res.ClaudeOK)
	assert.Nil(t, res.NodeVersion)
	assert.Equal(t, "Node.js not found on PATH.", models.Deref(res.NodeDetails))
	assert.Equal(t, "Claude Code CLI not found. Run 'npm install -g @anthropic-ai/claude-code'.", models.Deref(res.ClaudeDetails))
	assert.Equal(t, dir, models.Deref(res.Path))
}

func TestDoctorHealthy(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "node", "echo v20.11.0")
	writeScript(t, dir, "claude", "echo '1.0.3 (Claude Code)'")

	res := Doctor(context.Background(), DoctorOptions{SearchPath: []string{dir}})
	assert.True(t, res.OK)
	assert.Equal(t, "v20.11.0", models.Deref(res.NodeVersion))
	assert.Equal(t, "1.0.3 (Claude Code)", models.Deref(res.ClaudeVersion))
	assert.Nil(t, res.NodeDetails)
	assert.Nil(t, res.ClaudeDetails)
}

func TestDoctorFailingProbe(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "node", "echo v18.19.0")
	writeScript(t, dir, "my-claude", "echo 'cannot load config' >&2\nexit 1")

	res := Doctor(context.Background(), DoctorOptions{
		ClaudeBin:  "my-claude",
		SearchPath: []string{dir},
	})
	assert.False(t, res.OK)
	assert.True(t, res.NodeOK)
	assert.False(t, res.ClaudeOK)
	assert.Equal(t, "cannot load config", models.Deref(res.ClaudeDetails))
}
