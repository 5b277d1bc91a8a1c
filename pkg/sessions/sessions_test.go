package sessions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/testutil"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		cwd  string
		want string
	}{
		{"unix absolute", "/Users/foo/CodexMonitor", "-Users-foo-CodexMonitor"},
		{"home path", "/home/user/project", "-home-user-project"},
		{"relative", "Users/foo/bar", "-Users-foo-bar"},
		{"windows", `C:\Users\foo\bar`, "-C:-Users-foo-bar"},
		{"single dir", "/project", "-project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.cwd))
		})
	}
}

func TestDerivePaths(t *testing.T) {
	transcript, project := DerivePaths("/home/u/.claude", "/work/app", "abc")
	assert.Equal(t, "/home/u/.claude/projects/-work-app", project)
	assert.Equal(t, "/home/u/.claude/projects/-work-app/abc.jsonl", transcript)
}

func TestSameCwd(t *testing.T) {
	assert.True(t, SameCwd("/work/app/", "/work/app"))
	assert.True(t, SameCwd("/work/app", "/work/app//"))
	assert.False(t, SameCwd("/work/app", "/work/App"))
}

func TestScanMissingProjectsDir(t *testing.T) {
	scanner := NewScanner(filepath.Join(t.TempDir(), "nope"))
	got, err := scanner.Scan("/work/app")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestScan(t *testing.T) {
	home := t.TempDir()
	cwd := "/work/app"
	dir := ProjectDir(home, cwd)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	long := strings.Repeat("é", 120)
	testutil.WriteTranscript(t, dir, "older", base,
		`{"type":"summary"}`,
		testutil.UserLine(cwd+"/", "u1", "first question"),
	)
	testutil.WriteTranscript(t, dir, "newer", base.Add(10*time.Minute),
		"not json",
		testutil.UserLine(cwd, "u2", long),
	)
	testutil.WriteTranscript(t, dir, "elsewhere", base.Add(20*time.Minute),
		testutil.UserLine("/other/place", "u3", "hi"),
	)
	testutil.WriteTranscript(t, dir, "nocwd", base.Add(-10*time.Minute),
		`{"type":"user","message":{"content":"plain string content"}}`,
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	got, err := NewScanner(home).Scan(cwd)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "newer", got[0].SessionID)
	assert.Equal(t, "older", got[1].SessionID)
	assert.Equal(t, "nocwd", got[2].SessionID)

	assert.Equal(t, strings.Repeat("é", 100)+"...", models.Deref(got[0].Preview))
	assert.Equal(t, "first question", models.Deref(got[1].Preview))
	assert.Equal(t, cwd+"/", got[1].Cwd)
	assert.Equal(t, cwd, got[2].Cwd)
	assert.Equal(t, "plain string content", models.Deref(got[2].Preview))

	assert.Equal(t, base.Add(10*time.Minute).UnixMilli(), got[0].LastActivity)
	assert.Equal(t, filepath.Join(dir, "newer.jsonl"), models.Deref(got[0].TranscriptPath))
	assert.Equal(t, dir, models.Deref(got[0].ProjectPath))
	assert.Equal(t, models.SessionActive, got[0].Status)
}

func TestScanStopsAfterLineLimit(t *testing.T) {
	home := t.TempDir()
	cwd := "/work/app"
	lines := make([]string, 0, DefaultScanLines+1)
	for i := 0; i < DefaultScanLines; i++ {
		lines = append(lines, `{"type":"progress"}`)
	}
	lines = append(lines, testutil.UserLine("/other", "late", "too late"))
	testutil.WriteTranscript(t, ProjectDir(home, cwd), "s1", time.Time{}, lines...)

	got, err := NewScanner(home).Scan(cwd)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Preview)
	assert.Equal(t, cwd, got[0].Cwd)
}

func TestParseHistory(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTranscript(t, dir, "s1", time.Time{},
		`{"type":"system","message":{"content":[{"type":"text","text":"ignored"}]}}`,
		testutil.AssistantLine("/w", "a0", "warming up"),
		"",
		testutil.UserLine("/w", "", "hello", "", "world"),
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash"}]}}`,
		`{"type":"assistant","message":{"text":"plain text"}}`,
		"{broken",
	)

	history, err := ParseHistory("s1", path)
	require.NoError(t, err)
	require.Len(t, history.Items, 3)

	assert.Equal(t, models.HistoryItem{ID: "a0", Kind: "message", Role: "assistant", Text: "warming up"}, history.Items[0])
	assert.Equal(t, models.HistoryItem{ID: "s1:3", Kind: "message", Role: "user", Text: "hello\nworld"}, history.Items[1])
	assert.Equal(t, "plain text", history.Items[2].Text)
	assert.Equal(t, "hello\nworld", models.Deref(history.Preview))
	assert.Greater(t, history.LastActivity, int64(0))
}

func TestParseHistoryPreviewFallsBackToFirstItem(t *testing.T) {
	path := testutil.WriteTranscript(t, t.TempDir(), "s2", time.Time{},
		testutil.AssistantLine("/w", "a1", "only assistant"),
	)
	history, err := ParseHistory("s2", path)
	require.NoError(t, err)
	assert.Equal(t, "only assistant", models.Deref(history.Preview))
}

func TestParseHistoryMissingFile(t *testing.T) {
	_, err := ParseHistory("s3", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestFollow(t *testing.T) {
	path := testutil.WriteTranscript(t, t.TempDir(), "s4", time.Time{},
		testutil.UserLine("/w", "u1", "before"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := make(chan models.HistoryItem, 4)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, "s4", path, FollowOptions{Poll: true}, func(item models.HistoryItem) {
			items <- item
		})
	}()

	select {
	case item := <-items:
		assert.Equal(t, "before", item.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("existing line was not delivered")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(testutil.AssistantLine("/w", "a1", "after") + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case item := <-items:
		assert.Equal(t, "after", item.Text)
		assert.Equal(t, "assistant", item.Role)
	case <-time.After(5 * time.Second):
		t.Fatal("appended line was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}
