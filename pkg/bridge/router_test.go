package bridge

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/models"
)

func newTestRouter() (*router, *recorder, *fakeLifecycle) {
	rec := &recorder{}
	lc := &fakeLifecycle{}
	return &router{
		pending:   newPendingRequests(),
		events:    rec,
		lifecycle: lc,
		tracker:   NewTracker(),
		logger:    logging.NewLogger("bridge"),
		now:       func() int64 { return 42 },
	}, rec, lc
}

func TestRouterDefaults(t *testing.T) {
	r, rec, _ := newTestRouter()

	r.handleLine(`{"type":"message/delta","sessionId":"s1"}`)
	r.handleLine(`{"type":"x","timestamp":null,"payload":{"a":1}}`)
	r.handleLine(`{"timestamp":7}`)
	r.handleLine(`[1,2,3]`)

	require.Len(t, rec.events, 4)
	assert.Equal(t, models.BridgeEvent{Type: "message/delta", SessionID: "s1", Timestamp: 42, Payload: json.RawMessage("null")}, rec.events[0])
	assert.Equal(t, int64(42), rec.events[1].Timestamp)
	assert.JSONEq(t, `{"a":1}`, string(rec.events[1].Payload))
	assert.Equal(t, "unknown", rec.events[2].Type)
	assert.Equal(t, int64(7), rec.events[2].Timestamp)
	assert.Equal(t, "unknown", rec.events[3].Type)
}

func TestRouterParseError(t *testing.T) {
	r, rec, _ := newTestRouter()
	r.handleLine(`{"type":`)
	r.handleLine(`{"type":"after"}`)

	require.Len(t, rec.events, 2)
	assert.Equal(t, models.EventError, rec.events[0].Type)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.events[0].Payload, &payload))
	assert.Equal(t, "PARSE_ERROR", payload["code"])
	assert.Equal(t, true, payload["recoverable"])
	assert.Contains(t, payload["message"], "Failed to parse bridge output")
	assert.Equal(t, "after", rec.events[1].Type)
}

func TestRouterResponses(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantResult string
		wantErr    string
	}{
		{"result", `{"id":%d,"result":{"ok":true}}`, `{"ok":true}`, ""},
		{"no result", `{"id":%d}`, `null`, ""},
		{"error", `{"id":%d,"error":{"message":"nope"}}`, "", `{"message":"nope"}`},
		{"null error", `{"id":%d,"error":null,"result":1}`, `1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec, _ := newTestRouter()
			id, ch, ok := r.pending.register()
			require.True(t, ok)

			line, _ := json.Marshal(map[string]interface{}{
				"type":    "response",
				"payload": json.RawMessage(sprintf(tt.payload, id)),
			})
			r.handleLine(string(line))

			got := <-ch
			if tt.wantErr != "" {
				assert.JSONEq(t, tt.wantErr, string(got.err))
				assert.Nil(t, got.result)
			} else {
				assert.JSONEq(t, tt.wantResult, string(got.result))
				assert.Nil(t, got.err)
			}
			assert.Empty(t, rec.events)
		})
	}
}

func TestRouterUnmatchedResponseIsBroadcast(t *testing.T) {
	r, rec, _ := newTestRouter()
	r.handleLine(`{"type":"response","payload":{"id":99,"result":1}}`)
	r.handleLine(`{"type":"response","payload":{"result":1}}`)
	assert.Len(t, rec.events, 2)
}

func TestRouterSessionStarted(t *testing.T) {
	r, rec, lc := newTestRouter()
	r.handleLine(`{"type":"session/started","sessionId":"s1","workspaceId":"ws1","payload":{"cwd":"/w","model":"m","transcriptPath":"/t.jsonl"}}`)
	r.handleLine(`{"type":"session/started","sessionId":"s2","payload":{"cwd":"/w"}}`)

	assert.Len(t, rec.events, 2)
	started, _ := lc.snapshot()
	require.Len(t, started, 2)
	assert.Equal(t, models.SessionStart{SessionID: "s1", WorkspaceID: "ws1", Cwd: "/w", Model: "m", TranscriptPath: "/t.jsonl"}, started[0])

	tracked := r.tracker.List()
	require.Len(t, tracked, 1, "sessions without a workspace are not tracked")
	assert.Equal(t, models.TrackedSession{SessionID: "s1", WorkspaceID: "ws1", Cwd: "/w", Model: "m", StartedAt: 42}, tracked[0])

	r.handleLine(`{"type":"session/closed","sessionId":"s1"}`)
	assert.Empty(t, r.tracker.List())
}

func TestRouterResult(t *testing.T) {
	r, _, lc := newTestRouter()
	r.handleLine(`{"type":"result","sessionId":"s1"}`)
	r.handleLine(`{"type":"result"}`)
	_, turns := lc.snapshot()
	assert.Equal(t, []string{"s1", ""}, turns)
}

func TestPendingDrain(t *testing.T) {
	p := newPendingRequests()
	id1, ch1, _ := p.register()
	id2, ch2, _ := p.register()
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)

	assert.Equal(t, 2, p.drain())
	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)

	_, _, ok = p.register()
	assert.False(t, ok)
	assert.False(t, p.resolve(id1, reply{}))
}

func sprintf(format string, id uint64) string {
	return fmt.Sprintf(format, id)
}
