package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/pkg/sessions"
	"github.com/grovetools/claudemon/testutil"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "threads.json")
	reg, err := Open(path, WithClaudeHome(filepath.Join(t.TempDir(), "claude")))
	require.NoError(t, err)
	return reg, path
}

func loadFile(t *testing.T, path string) *models.ThreadRegistry {
	t.Helper()
	loaded, err := NewFileStore(path).Load()
	require.NoError(t, err)
	return loaded
}

func TestOpenMissingFile(t *testing.T) {
	reg, path := newTestRegistry(t)
	assert.Empty(t, reg.WorkspaceIDs())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg, path := newTestRegistry(t)

	first := testutil.SessionFixture("s1", "/w")
	require.NoError(t, reg.Register("ws1", first))
	second := first
	second.Preview = models.StringPtr("updated")
	require.NoError(t, reg.Register("ws1", second))

	loaded := loadFile(t, path)
	assert.Equal(t, []string{"s1"}, loaded.Workspaces["ws1"].VisibleSessionIDs)
	require.Contains(t, loaded.Sessions, "s1")
	assert.Equal(t, "updated", models.Deref(loaded.Sessions["s1"].Preview))
}

func TestRoundTrip(t *testing.T) {
	reg, path := newTestRegistry(t)
	entry := testutil.SessionFixture("s1", "/w")
	entry.TranscriptPath = models.StringPtr("/t/s1.jsonl")
	require.NoError(t, reg.Register("ws1", entry))
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("s2", "/w")))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Snapshot(), reopened.Snapshot())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["version"])
	assert.Contains(t, string(data), "\n  \"sessions\"")
}

func TestUpdateActivity(t *testing.T) {
	reg, path := newTestRegistry(t)
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("s1", "/w")))

	require.NoError(t, reg.UpdateActivity("s1", nil))
	got, ok := reg.Session("s1")
	require.True(t, ok)
	assert.Greater(t, got.LastActivity, int64(1700000001000))
	assert.Equal(t, "preview of s1", models.Deref(got.Preview))

	require.NoError(t, reg.UpdateActivity("s1", models.StringPtr("new preview")))
	got, _ = reg.Session("s1")
	assert.Equal(t, "new preview", models.Deref(got.Preview))

	require.NoError(t, reg.UpdateActivity("unknown", nil))
	_, ok = reg.Session("unknown")
	assert.False(t, ok)
	assert.Len(t, loadFile(t, path).Sessions, 1)
}

func TestArchiveAndListArchived(t *testing.T) {
	reg, _ := newTestRegistry(t)
	a := testutil.SessionFixture("a", "/w")
	b := testutil.SessionFixture("b", "/w")
	b.LastActivity = a.LastActivity + 10
	other := testutil.SessionFixture("c", "/elsewhere")
	require.NoError(t, reg.Import("ws1", []models.SessionEntry{a, b, other}))

	require.NoError(t, reg.Archive("ws1", "a"))
	require.NoError(t, reg.Archive("ws1", "c"))

	visible, err := reg.ListVisible("ws1")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "b", visible[0].SessionID)

	archived := reg.ListArchived("ws1", "/w")
	require.Len(t, archived, 1)
	assert.Equal(t, "a", archived[0].SessionID)

	_, ok := reg.Session("a")
	assert.True(t, ok, "archived session record must be kept")

	require.NoError(t, reg.Archive("unknown-ws", "a"))
	assert.Empty(t, reg.ListArchived("ws1", ""))
	assert.Len(t, reg.ListArchived("fresh-ws", "/w"), 2)
}

func TestUnarchive(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("a", "/w")))
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("b", "/w")))
	require.NoError(t, reg.Archive("ws1", "a"))

	require.NoError(t, reg.Unarchive("ws1", "a"))
	require.NoError(t, reg.Unarchive("ws1", "a"))
	visible, err := reg.ListVisible("ws1")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "b", visible[0].SessionID)
	assert.Equal(t, "a", visible[1].SessionID)

	err = reg.Unarchive("ws1", "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
	assert.Equal(t, "Session ghost not found", err.(*errors.GroveError).Message)
}

func TestListVisibleFlipsMissing(t *testing.T) {
	reg, path := newTestRegistry(t)
	dir := t.TempDir()
	present := testutil.WriteTranscript(t, dir, "present", time.Time{}, testutil.UserLine("/w", "u", "hi"))

	alive := testutil.SessionFixture("present", "/w")
	alive.TranscriptPath = models.StringPtr(present)
	gone := testutil.SessionFixture("gone", "/w")
	gone.TranscriptPath = models.StringPtr(filepath.Join(dir, "gone.jsonl"))
	noPath := testutil.SessionFixture("nopath", "/w")
	require.NoError(t, reg.Import("ws1", []models.SessionEntry{alive, gone, noPath}))

	visible, err := reg.ListVisible("ws1")
	require.NoError(t, err)
	require.Len(t, visible, 3)
	assert.Equal(t, models.SessionActive, visible[0].Status)
	assert.Equal(t, models.SessionMissing, visible[1].Status)
	assert.Equal(t, models.SessionActive, visible[2].Status)

	assert.Equal(t, models.SessionMissing, loadFile(t, path).Sessions["gone"].Status)

	// Restoring the file does not flip it back.
	testutil.WriteTranscript(t, dir, "gone", time.Time{}, testutil.UserLine("/w", "u", "back"))
	visible, err = reg.ListVisible("ws1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionMissing, visible[1].Status)
}

func TestListVisibleSkipsDanglingIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "threads.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "version": 1,
  "workspaces": {"ws1": {"visibleSessionIds": ["ghost", "s1"]}},
  "sessions": {"s1": {"sessionId": "s1", "cwd": "/w", "createdAt": 1, "lastActivity": 2}}
}`), 0o644))

	reg, err := Open(path)
	require.NoError(t, err)
	visible, err := reg.ListVisible("ws1")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "s1", visible[0].SessionID)
	assert.Equal(t, models.SessionActive, visible[0].Status)

	empty, err := reg.ListVisible("nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFailedSaveKeepsPreviousFile(t *testing.T) {
	reg, path := newTestRegistry(t)
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("s1", "/w")))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A directory at the temp path makes the write fail before the rename.
	require.NoError(t, os.Mkdir(path+".tmp", 0o755))
	err = reg.Register("ws1", testutil.SessionFixture("s2", "/w"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePersistence))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Memory still reflects the mutation.
	_, ok := reg.Session("s2")
	assert.True(t, ok)
}

func TestLoadIgnoresStaleTempFile(t *testing.T) {
	reg, path := newTestRegistry(t)
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("s1", "/w")))
	require.NoError(t, os.WriteFile(path+".tmp", []byte(`{"version": 1, "sess`), 0o644))

	reopened, err := Open(path)
	require.NoError(t, err)
	_, ok := reopened.Session("s1")
	assert.True(t, ok)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePersistence))
}

func TestConcurrentMutations(t *testing.T) {
	reg, path := newTestRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := testutil.RandomString(8)
			assert.NoError(t, reg.Register("ws1", testutil.SessionFixture(id, "/w")))
			assert.NoError(t, reg.UpdateActivity(id, nil))
		}(i)
	}
	wg.Wait()
	assert.Len(t, loadFile(t, path).Workspaces["ws1"].VisibleSessionIDs, 20)
}

func TestHistory(t *testing.T) {
	reg, _ := newTestRegistry(t)
	cwd := "/work/app"
	transcript, _ := sessions.DerivePaths(reg.ClaudeHome(), cwd, "s1")
	testutil.WriteTranscript(t, filepath.Dir(transcript), "s1", time.Time{},
		testutil.UserLine(cwd, "u1", "hello"),
		testutil.AssistantLine(cwd, "a1", "hi there"),
	)
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("s1", cwd)))

	history, err := reg.History("s1")
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	assert.Equal(t, "hello", models.Deref(history.Preview))
	assert.Equal(t, models.SessionActive, history.Status)

	got, _ := reg.Session("s1")
	assert.Equal(t, transcript, models.Deref(got.TranscriptPath))
	assert.Equal(t, filepath.Dir(transcript), models.Deref(got.ProjectPath))
}

func TestHistoryMissingTranscript(t *testing.T) {
	reg, _ := newTestRegistry(t)
	entry := testutil.SessionFixture("s1", "/w")
	entry.TranscriptPath = models.StringPtr(filepath.Join(t.TempDir(), "s1.jsonl"))
	require.NoError(t, reg.Register("ws1", entry))

	history, err := reg.History("s1")
	require.NoError(t, err)
	assert.Empty(t, history.Items)
	assert.Equal(t, models.SessionMissing, history.Status)

	got, _ := reg.Session("s1")
	assert.Equal(t, models.SessionMissing, got.Status)

	_, err = reg.History("ghost")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestCheckTranscripts(t *testing.T) {
	reg, _ := newTestRegistry(t)
	entry := testutil.SessionFixture("s1", "/w")
	entry.TranscriptPath = models.StringPtr("/definitely/not/here.jsonl")
	require.NoError(t, reg.Register("ws1", entry))
	require.NoError(t, reg.Register("ws2", testutil.SessionFixture("s2", "/w")))

	flipped, err := reg.CheckTranscripts()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, flipped)

	flipped, err = reg.CheckTranscripts()
	require.NoError(t, err)
	assert.Empty(t, flipped)
	assert.Equal(t, []string{"ws1", "ws2"}, reg.WorkspaceIDs())
}

func TestIntegrationSessionStarted(t *testing.T) {
	reg, _ := newTestRegistry(t)
	integration := NewIntegration(reg)

	require.NoError(t, integration.SessionStarted(models.SessionStart{
		SessionID:   "s1",
		WorkspaceID: "ws1",
		Cwd:         "/work/app",
	}))
	got, ok := reg.Session("s1")
	require.True(t, ok)
	transcript, project := sessions.DerivePaths(reg.ClaudeHome(), "/work/app", "s1")
	assert.Equal(t, transcript, models.Deref(got.TranscriptPath))
	assert.Equal(t, project, models.Deref(got.ProjectPath))
	assert.Nil(t, got.Preview)
	assert.Equal(t, got.CreatedAt, got.LastActivity)
	assert.Equal(t, models.SessionActive, got.Status)

	require.NoError(t, integration.SessionStarted(models.SessionStart{
		SessionID:      "s2",
		WorkspaceID:    "ws1",
		Cwd:            "/work/app",
		TranscriptPath: "/custom/s2.jsonl",
	}))
	got, _ = reg.Session("s2")
	assert.Equal(t, "/custom/s2.jsonl", models.Deref(got.TranscriptPath))
	assert.Nil(t, got.ProjectPath)

	require.NoError(t, integration.SessionStarted(models.SessionStart{WorkspaceID: "ws1"}))
	visible, err := reg.ListVisible("ws1")
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestIntegrationTurnCompleted(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register("ws1", testutil.SessionFixture("s1", "/w")))
	require.NoError(t, NewIntegration(reg).TurnCompleted("s1"))
	got, _ := reg.Session("s1")
	assert.Greater(t, got.LastActivity, int64(1700000001000))
}
