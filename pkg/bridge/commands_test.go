package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
)

type workspaceMap map[string]models.WorkspaceEntry

func (m workspaceMap) Get(id string) (models.WorkspaceEntry, error) {
	ws, ok := m[id]
	if !ok {
		return models.WorkspaceEntry{}, errors.WorkspaceNotFound(id)
	}
	return ws, nil
}

func newCommands(t *testing.T, settings func() models.AppSettings) (*Commands, *harness) {
	t.Helper()
	h := newHarness(t, "ok", 0)
	ws := workspaceMap{
		"ws-1": {
			ID:   "ws-1",
			Name: "one",
			Path: "/work/one",
			Settings: models.WorkspaceSettings{
				MCPServers: map[string]models.MCPServerConfig{"docs": {Type: "stdio"}},
			},
		},
	}
	return NewCommands(h.sup, ws, settings), h
}

func TestListModelsNeedsSession(t *testing.T) {
	c, h := newCommands(t, nil)
	ctx := context.Background()

	_, err := c.ListModels(ctx, ModelListParams{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNoSession))
	assert.Contains(t, err.Error(), "No active Claude session found")
	assert.NotNil(t, h.sup.Current(), "bridge is started before the session lookup")

	started, err := c.StartSession(ctx, StartSessionParams{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	sessionID := decode(t, started)["sessionId"].(string)

	raw, err := c.ListModels(ctx, ModelListParams{})
	require.NoError(t, err)
	out := decode(t, raw)
	assert.Equal(t, MethodModelList, out["method"])
	assert.Equal(t, sessionID, out["params"].(map[string]interface{})["sessionId"])
}

func TestStartSessionDefaults(t *testing.T) {
	c, h := newCommands(t, nil)

	raw, err := c.StartSession(context.Background(), StartSessionParams{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	sessionID := decode(t, raw)["sessionId"].(string)

	started, _ := h.lifecycle.snapshot()
	require.Len(t, started, 1)
	assert.Equal(t, sessionID, started[0].SessionID)
	assert.Equal(t, "ws-1", started[0].WorkspaceID)
	assert.Equal(t, "/work/one", started[0].Cwd)

	tracked, ok := h.sup.Tracker().Get(sessionID)
	require.True(t, ok)
	assert.Equal(t, "ws-1", tracked.WorkspaceID)
}

func TestStartSessionUsesSettingsPermissionMode(t *testing.T) {
	c, h := newCommands(t, func() models.AppSettings {
		s := models.DefaultAppSettings()
		s.DefaultPermissionMode = "sometimes"
		return s
	})

	_, err := c.StartSession(context.Background(), StartSessionParams{WorkspaceID: "ws-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Nil(t, h.sup.Current(), "invalid params never spawn the bridge")

	_, err = c.StartSession(context.Background(), StartSessionParams{WorkspaceID: "ws-1", PermissionMode: "plan"})
	require.NoError(t, err)
}

func TestInvalidInputDoesNotSpawn(t *testing.T) {
	c, h := newCommands(t, nil)
	ctx := context.Background()

	_, err := c.SendMessage(ctx, SendMessageParams{SessionID: "s"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	_, err = c.Interrupt(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	_, err = c.Call(ctx, &PermissionResponseParams{SessionID: "s"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	assert.Nil(t, h.sup.Current())
	assert.Empty(t, h.events.ofType(models.EventBridgeConnected))
}

func TestResumeSessionResolvesWorkspace(t *testing.T) {
	c, _ := newCommands(t, nil)
	ctx := context.Background()

	raw, err := c.ResumeSession(ctx, ResumeSessionParams{WorkspaceID: "ws-1", SessionID: "abc"})
	require.NoError(t, err)
	params := decode(t, raw)["params"].(map[string]interface{})
	assert.Equal(t, "/work/one", params["cwd"])
	assert.Equal(t, "abc", params["sessionId"])

	_, err = c.ResumeSession(ctx, ResumeSessionParams{WorkspaceID: "nope", SessionID: "abc"})
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestCloseSessionUntracks(t *testing.T) {
	c, h := newCommands(t, nil)
	ctx := context.Background()

	raw, err := c.StartSession(ctx, StartSessionParams{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	sessionID := decode(t, raw)["sessionId"].(string)
	_, ok := h.sup.Tracker().Get(sessionID)
	require.True(t, ok)

	_, err = c.CloseSession(ctx, CloseSessionParams{SessionID: sessionID})
	require.NoError(t, err)
	_, ok = h.sup.Tracker().Get(sessionID)
	assert.False(t, ok)
}

func TestSendMessageGeneratesMessageID(t *testing.T) {
	c, h := newCommands(t, nil)
	ctx := context.Background()

	raw, err := c.SendMessage(ctx, SendMessageParams{SessionID: "s1", WorkspaceID: "ws-1", Message: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, decode(t, raw)["messageId"])

	raw, err = c.SendMessage(ctx, SendMessageParams{SessionID: "s1", Message: "again", MessageID: models.StringPtr("m-1")})
	require.NoError(t, err)
	assert.Equal(t, "m-1", decode(t, raw)["messageId"])

	h.events.waitFor(t, "message/delta")
	_, turns := h.lifecycle.snapshot()
	assert.Equal(t, []string{"s1", "s1"}, turns)
}

func TestCallDispatchesDecodedParams(t *testing.T) {
	c, _ := newCommands(t, nil)

	p, err := DecodeParams(MethodMCPStatus, json.RawMessage(`{"sessionId":"s9"}`))
	require.NoError(t, err)
	raw, err := c.Call(context.Background(), p)
	require.NoError(t, err)
	out := decode(t, raw)
	assert.Equal(t, MethodMCPStatus, out["method"])
	assert.Equal(t, "s9", out["params"].(map[string]interface{})["sessionId"])
}
