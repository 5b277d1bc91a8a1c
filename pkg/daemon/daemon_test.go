package daemon

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/internal/daemon/app"
	"github.com/grovetools/claudemon/internal/daemon/server"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/bridge"
	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/testutil"
)

func TestMain(m *testing.M) {
	testutil.MaybeRunFakeAgent()
	os.Exit(m.Run())
}

func fakeLauncher() app.Option {
	return app.WithLauncher(bridge.LauncherFunc(func() (*exec.Cmd, error) {
		return testutil.FakeAgentCommand(testutil.FakeAgentOK), nil
	}))
}

// testConfig isolates all state and registers one workspace. The socket
// lives in a short temp dir to stay under the unix socket path limit.
func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	testutil.IsolateHome(t)
	project := filepath.Join(t.TempDir(), "project")
	require.NoError(t, os.MkdirAll(project, 0o755))

	sockDir, err := os.MkdirTemp("", "cm")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })

	cfg := config.Default()
	cfg.Daemon.Socket = filepath.Join(sockDir, "d.sock")
	testutil.WriteWorkspaces(t, cfg.Registry.Workspaces, models.WorkspaceEntry{ID: "ws-1", Name: "project", Path: project})
	return cfg, project
}

func startDaemon(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.New(cfg, fakeLauncher())
	require.NoError(t, err)
	srv := server.New(a, logging.NewLogger("server"))
	go func() { _ = srv.ListenAndServe(cfg.Daemon.Socket) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close()
		_ = srv.Shutdown(ctx)
	})
	require.Eventually(t, func() bool { return Dial(cfg.Daemon.Socket) != nil }, 5*time.Second, 20*time.Millisecond)
	return a
}

func startSession(t *testing.T, c Client) string {
	t.Helper()
	raw, err := c.Call(context.Background(), bridge.MethodSessionStart, json.RawMessage(`{"workspaceId":"ws-1"}`))
	require.NoError(t, err)
	var out struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func exerciseClient(t *testing.T, c Client, project string) {
	ctx := context.Background()

	events, err := c.StreamEvents(ctx)
	require.NoError(t, err)

	sessionID := startSession(t, c)

	status, err := c.BridgeStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.Sessions)

	list, err := c.ListSessions(ctx, "ws-1", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sessionID, list[0].SessionID)
	assert.Equal(t, project, list[0].Cwd)

	require.NoError(t, c.Archive(ctx, "ws-1", sessionID))
	archived, err := c.ListSessions(ctx, "ws-1", true)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	require.NoError(t, c.Unarchive(ctx, "ws-1", sessionID))

	err = c.Unarchive(ctx, "ws-1", "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	history, err := c.History(ctx, "ws-1", sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionMissing, history.Status)

	found, err := c.Import(ctx, "ws-1")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = c.Call(ctx, bridge.MethodMessageSend, json.RawMessage(`{"sessionId":"x"}`))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok)
			if ev.Type == models.EventSessionStarted {
				assert.Equal(t, sessionID, ev.SessionID)
				require.NoError(t, c.Disconnect(ctx))
				status, err = c.BridgeStatus(ctx)
				require.NoError(t, err)
				assert.False(t, status.Connected)
				return
			}
		case <-deadline:
			t.Fatal("no session/started event")
		}
	}
}

func TestLocalClient(t *testing.T) {
	cfg, project := testConfig(t)
	c, err := NewLocalClient(cfg, fakeLauncher())
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.IsRunning())
	exerciseClient(t, c, project)
}

func TestRemoteClient(t *testing.T) {
	cfg, project := testConfig(t)
	startDaemon(t, cfg)

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	remote, ok := c.(*RemoteClient)
	require.True(t, ok, "factory should pick the daemon")
	assert.True(t, remote.IsRunning())
	exerciseClient(t, remote, project)
}

func TestRemoteClientWebSocket(t *testing.T) {
	cfg, _ := testConfig(t)
	a := startDaemon(t, cfg)
	remote := NewRemoteClient(cfg.Daemon.Socket)
	defer remote.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := remote.StreamEventsWS(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.Events.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	a.Events.Publish(models.NewEvent(models.EventRegistryUpdated, "", "", map[string][]string{"missing": {"s1"}}))
	select {
	case ev := <-events:
		assert.Equal(t, models.EventRegistryUpdated, ev.Type)
		assert.JSONEq(t, `{"missing":["s1"]}`, string(ev.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("no event over websocket")
	}
}

func TestFactoryFallsBackToLocal(t *testing.T) {
	cfg, _ := testConfig(t)
	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.(*LocalClient)
	assert.True(t, ok)
	assert.Nil(t, Dial(cfg.Daemon.Socket))
}
