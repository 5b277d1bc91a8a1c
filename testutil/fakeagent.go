package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// FakeAgentEnv selects the fake agent mode when a test binary re-execs
// itself. Packages that use the fake agent call MaybeRunFakeAgent from
// TestMain.
const FakeAgentEnv = "CLAUDEMON_FAKE_AGENT"

// Fake agent modes.
const (
	// FakeAgentOK answers every request.
	FakeAgentOK = "ok"
	// FakeAgentSilent never answers, not even initialize.
	FakeAgentSilent = "silent"
	// FakeAgentInitError rejects initialize with an error payload.
	FakeAgentInitError = "init-error"
	// FakeAgentExit exits before reading anything.
	FakeAgentExit = "exit"
)

// Fake agent methods with special behavior in FakeAgentOK mode.
const (
	FakeMethodFail   = "test/fail"
	FakeMethodCrash  = "test/crash"
	FakeMethodHang   = "test/hang"
	FakeMethodNoise  = "test/noise"
	FakeMethodDelay  = "test/delay"
	FakeMethodOrphan = "test/orphan"
)

// MaybeRunFakeAgent runs the fake agent and exits when FakeAgentEnv is set.
// It returns immediately otherwise.
func MaybeRunFakeAgent() {
	mode := os.Getenv(FakeAgentEnv)
	if mode == "" {
		return
	}
	os.Exit(RunFakeAgent(mode, os.Stdin, os.Stdout, os.Stderr))
}

// FakeAgentCommand returns a command that re-execs the current test binary
// as a fake agent in the given mode.
func FakeAgentCommand(mode string) *exec.Cmd {
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(), FakeAgentEnv+"="+mode)
	return cmd
}

type fakeRequest struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type fakeAgent struct {
	mu  sync.Mutex
	out io.Writer
	wg  sync.WaitGroup
}

// RunFakeAgent speaks the bridge protocol on in/out and returns an exit code.
func RunFakeAgent(mode string, in io.Reader, out, errOut io.Writer) int {
	if mode == FakeAgentExit {
		return 3
	}
	fmt.Fprintln(errOut, "fake agent ready")
	fmt.Fprintln(errOut, "")

	a := &fakeAgent{out: out}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		var req fakeRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			a.emit("error", "", "", map[string]string{"message": err.Error()})
			continue
		}
		if req.ID == nil {
			a.emit("notification/ack", "", "", map[string]string{"method": req.Method})
			continue
		}
		switch mode {
		case FakeAgentSilent:
			continue
		case FakeAgentInitError:
			if req.Method == "initialize" {
				a.respondError(*req.ID, map[string]string{"code": "UNSUPPORTED", "message": "client not supported"})
				continue
			}
		}
		if req.Method == FakeMethodCrash {
			return 2
		}
		a.wg.Add(1)
		go func(req fakeRequest) {
			defer a.wg.Done()
			a.handle(req)
		}(req)
	}
	a.wg.Wait()
	return 0
}

func (a *fakeAgent) handle(req fakeRequest) {
	id := *req.ID
	var params map[string]interface{}
	_ = json.Unmarshal(req.Params, &params)
	sessionID, _ := params["sessionId"].(string)
	workspaceID, _ := params["workspaceId"].(string)

	switch req.Method {
	case "initialize":
		a.respond(id, map[string]interface{}{
			"serverInfo": map[string]string{"name": "fake-agent", "version": "0.0.1"},
			"clientInfo": params["clientInfo"],
		})
	case "session/start":
		newID := fmt.Sprintf("session-%d", id)
		a.emit("session/started", newID, workspaceID, map[string]interface{}{
			"cwd":   params["cwd"],
			"model": params["model"],
		})
		a.respond(id, map[string]string{"sessionId": newID})
	case "message/send":
		a.emit("message/delta", sessionID, workspaceID, map[string]string{"text": "thinking"})
		a.emit("result", sessionID, workspaceID, map[string]string{"text": "done"})
		a.respond(id, map[string]interface{}{"messageId": params["messageId"]})
	case "session/close":
		a.emit("session/closed", sessionID, "", nil)
		a.respond(id, nil)
	case FakeMethodFail:
		a.respondError(id, map[string]string{"code": "BOOM", "message": "boom"})
	case FakeMethodHang:
	case FakeMethodNoise:
		a.writeLine([]byte("this is not json"))
		a.writeLine([]byte(`{"type":"custom/event","payload":{"n":1}}`))
		a.respond(id, map[string]bool{"ok": true})
	case FakeMethodOrphan:
		a.writeResponse(id+1000, map[string]interface{}{"result": "stray"})
		a.respond(id, "ok")
	case FakeMethodDelay:
		if ms, ok := params["ms"].(float64); ok {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		a.respond(id, map[string]interface{}{"id": id, "echo": params["echo"]})
	default:
		a.respond(id, map[string]interface{}{"method": req.Method, "params": params})
	}
}

func (a *fakeAgent) respond(id uint64, result interface{}) {
	payload := map[string]interface{}{"result": result}
	if result == nil {
		payload = map[string]interface{}{}
	}
	a.writeResponse(id, payload)
}

func (a *fakeAgent) respondError(id uint64, errPayload interface{}) {
	a.writeResponse(id, map[string]interface{}{"error": errPayload})
}

func (a *fakeAgent) writeResponse(id uint64, fields map[string]interface{}) {
	fields["id"] = id
	a.emit("response", "", "", fields)
}

func (a *fakeAgent) emit(eventType, sessionID, workspaceID string, payload interface{}) {
	line, err := json.Marshal(map[string]interface{}{
		"type":        eventType,
		"sessionId":   sessionID,
		"workspaceId": workspaceID,
		"timestamp":   time.Now().UnixMilli(),
		"payload":     payload,
	})
	if err != nil {
		return
	}
	a.writeLine(line)
}

func (a *fakeAgent) writeLine(line []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Write(append(line, '\n'))
}
