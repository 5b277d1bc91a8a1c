package bridge

import (
	"context"
	"encoding/json"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
)

// Bridge is a live agent process plus the request correlation state bound
// to it. A Bridge is never reused after its process exits.
type Bridge struct {
	cmd       *exec.Cmd
	transport *transport
	pending   *pendingRequests
	startedAt time.Time

	readers conc.WaitGroup
	done    chan struct{}

	killOnce sync.Once
	mu       sync.Mutex
	exitErr  error

	logger *logrus.Entry
}

type outboundRequest struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type outboundNotification struct {
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// SendRequest writes a request and waits for the response with the same id.
// A response carrying an error fails with a PROTOCOL error; process exit
// fails with CANCELLED. ctx only bounds the wait.
func (b *Bridge) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id, ch, ok := b.pending.register()
	if !ok {
		return nil, errors.New(errors.ErrCodeTransport, "bridge process is not running")
	}
	if params == nil {
		params = struct{}{}
	}

	b.logger.WithFields(logrus.Fields{"id": id, "method": method}).Debug("Sending request")
	if err := b.transport.writeJSON(outboundRequest{ID: id, Method: method, Params: params}); err != nil {
		b.pending.forget(id)
		return nil, err
	}

	select {
	case r, ok := <-ch:
		if !ok {
			return nil, errors.Cancelled(method, id)
		}
		if r.err != nil {
			return nil, errors.Protocol(method, r.err)
		}
		return r.result, nil
	case <-ctx.Done():
		b.pending.forget(id)
		return nil, ctx.Err()
	}
}

// SendNotification writes a message that expects no response.
func (b *Bridge) SendNotification(method string, params interface{}) error {
	return b.transport.writeJSON(outboundNotification{Method: method, Params: params})
}

// Kill terminates the process and closes its stdin. It never waits on an
// in-flight write. It is safe to call more than once.
func (b *Bridge) Kill() error {
	var err error
	b.killOnce.Do(func() {
		if b.cmd.Process != nil {
			if kerr := b.cmd.Process.Kill(); kerr != nil && !b.exited() {
				err = errors.Transport("kill", kerr)
			}
		}
		_ = b.transport.close()
	})
	return err
}

// Done is closed once the process has exited and both readers returned.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Err returns the process exit error after Done is closed.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exitErr
}

// PID returns the process id.
func (b *Bridge) PID() int {
	if b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// StartedAt returns when the process was spawned.
func (b *Bridge) StartedAt() time.Time {
	return b.startedAt
}

// Alive reports whether the process is still running.
func (b *Bridge) Alive() bool {
	return !b.exited()
}

// Pending returns the number of requests awaiting a response.
func (b *Bridge) Pending() int {
	return b.pending.len()
}

func (b *Bridge) exited() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Status is a point-in-time description of the bridge for the API.
type Status struct {
	Connected bool   `json:"connected"`
	PID       int    `json:"pid,omitempty"`
	StartedAt int64  `json:"startedAt,omitempty"`
	Pending   int    `json:"pending"`
	Sessions  int    `json:"sessions"`
	Command   string `json:"command,omitempty"`
}

func (b *Bridge) status() Status {
	return Status{
		Connected: b.Alive(),
		PID:       b.PID(),
		StartedAt: b.startedAt.UnixMilli(),
		Pending:   b.Pending(),
		Command:   b.cmd.String(),
	}
}

// disconnectedEvent is broadcast when the stdout reader exits.
func disconnectedEvent(cancelled int, exitErr error) models.BridgeEvent {
	payload := map[string]interface{}{"cancelled": cancelled}
	if exitErr != nil {
		payload["error"] = exitErr.Error()
	}
	return models.NewEvent(models.EventBridgeDisconnect, "", "", payload)
}
