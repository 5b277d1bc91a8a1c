package bridge

import (
	"encoding/json"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grovetools/claudemon/pkg/models"
	"github.com/grovetools/claudemon/testutil"
)

func TestMain(m *testing.M) {
	testutil.MaybeRunFakeAgent()
	os.Exit(m.Run())
}

type recorder struct {
	mu     sync.Mutex
	events []models.BridgeEvent
}

func (r *recorder) Publish(ev models.BridgeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(eventType string) []models.BridgeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BridgeEvent
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, eventType string) models.BridgeEvent {
	t.Helper()
	var found models.BridgeEvent
	require.Eventually(t, func() bool {
		evs := r.ofType(eventType)
		if len(evs) == 0 {
			return false
		}
		found = evs[0]
		return true
	}, 5*time.Second, 10*time.Millisecond, "no %s event", eventType)
	return found
}

type fakeLifecycle struct {
	mu      sync.Mutex
	started []models.SessionStart
	turns   []string
	err     error
}

func (f *fakeLifecycle) SessionStarted(s models.SessionStart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, s)
	return f.err
}

func (f *fakeLifecycle) TurnCompleted(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, id)
	return f.err
}

func (f *fakeLifecycle) snapshot() ([]models.SessionStart, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SessionStart(nil), f.started...), append([]string(nil), f.turns...)
}

func fakeLauncher(mode string) Launcher {
	return LauncherFunc(func() (*exec.Cmd, error) {
		return testutil.FakeAgentCommand(mode), nil
	})
}

type harness struct {
	sup       *Supervisor
	events    *recorder
	lifecycle *fakeLifecycle
}

func newHarness(t *testing.T, mode string, initTimeout time.Duration) *harness {
	t.Helper()
	if initTimeout == 0 {
		initTimeout = 10 * time.Second
	}
	h := &harness{events: &recorder{}, lifecycle: &fakeLifecycle{}}
	h.sup = NewSupervisor(Options{
		Launcher:    fakeLauncher(mode),
		ClientInfo:  ClientInfo{Name: "claudemon-test", Version: "0.0.0"},
		InitTimeout: initTimeout,
		Events:      h.events,
		Lifecycle:   h.lifecycle,
	})
	t.Cleanup(func() { _ = h.sup.Disconnect() })
	return h
}

func decode(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
