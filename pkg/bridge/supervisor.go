package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/command"
	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/models"
)

// DefaultInitTimeout bounds the initialize handshake.
const DefaultInitTimeout = 30 * time.Second

// disconnectGrace is how long Disconnect waits for the process to exit.
const disconnectGrace = 5 * time.Second

// Launcher prepares the agent process. It is called once per spawn so
// configuration changes apply to the next process.
type Launcher interface {
	Command() (*exec.Cmd, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func() (*exec.Cmd, error)

// Command implements Launcher.
func (f LauncherFunc) Command() (*exec.Cmd, error) { return f() }

// Options configures a Supervisor.
type Options struct {
	Launcher    Launcher
	ClientInfo  ClientInfo
	InitTimeout time.Duration
	Events      Publisher
	Lifecycle   Lifecycle
	Tracker     *Tracker
}

// Supervisor owns the single bridge process slot. The first EnsureRunning
// spawns and handshakes; concurrent callers wait and share the result. A
// dead process is replaced on the next call.
type Supervisor struct {
	mu       sync.Mutex
	current  *Bridge
	starting *startAttempt
	// latest is the most recently spawned bridge. Only its exit clears the
	// tracker and reports a disconnect.
	latest *Bridge

	launcher    Launcher
	clientInfo  ClientInfo
	initTimeout time.Duration
	events      Publisher
	lifecycle   Lifecycle
	tracker     *Tracker
	logger      *logrus.Entry
	stderrLog   *logrus.Entry
}

// NewSupervisor creates a Supervisor. Nothing is spawned until EnsureRunning.
func NewSupervisor(opts Options) *Supervisor {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker()
	}
	return &Supervisor{
		launcher:    opts.Launcher,
		clientInfo:  opts.ClientInfo,
		initTimeout: opts.InitTimeout,
		events:      opts.Events,
		lifecycle:   opts.Lifecycle,
		tracker:     opts.Tracker,
		logger:      logging.NewLogger("bridge"),
		stderrLog:   logging.NewLogger("bridge.stderr"),
	}
}

// Tracker returns the live session tracker.
func (s *Supervisor) Tracker() *Tracker {
	return s.tracker
}

// SetLauncher replaces the launcher used by the next spawn.
func (s *Supervisor) SetLauncher(l Launcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launcher = l
}

// SetInitTimeout changes the handshake timeout for the next spawn.
func (s *Supervisor) SetInitTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initTimeout = d
}

// startAttempt is an in-flight spawn and handshake. proc is guarded by the
// supervisor lock; result and err are final once done is closed.
type startAttempt struct {
	done   chan struct{}
	proc   *Bridge
	result *Bridge
	err    error
}

// EnsureRunning returns the live bridge, spawning and initializing one if
// needed. Callers arriving during a start wait for it and share its result.
// Handshake failures kill the new process and are returned as is; there is
// no retry here. The lock is not held during the handshake, so Disconnect
// can abort a start.
func (s *Supervisor) EnsureRunning(ctx context.Context) (*Bridge, error) {
	s.mu.Lock()
	if s.current != nil && s.current.Alive() {
		b := s.current
		s.mu.Unlock()
		return b, nil
	}
	s.current = nil

	if att := s.starting; att != nil {
		s.mu.Unlock()
		select {
		case <-att.done:
			return att.result, att.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	att := &startAttempt{done: make(chan struct{})}
	s.starting = att
	launcher, timeout := s.launcher, s.initTimeout
	s.mu.Unlock()

	att.result, att.err = s.start(ctx, att, launcher, timeout)
	close(att.done)
	return att.result, att.err
}

func (s *Supervisor) start(ctx context.Context, att *startAttempt, launcher Launcher, timeout time.Duration) (*Bridge, error) {
	b, err := s.spawn(launcher)
	if err != nil {
		s.finishAttempt(att)
		return nil, err
	}

	s.mu.Lock()
	aborted := s.starting != att
	if !aborted {
		att.proc = b
	}
	s.mu.Unlock()
	if aborted {
		_ = b.Kill()
		return nil, errAborted()
	}

	result, err := s.handshake(ctx, b, timeout)

	s.mu.Lock()
	aborted = s.starting != att
	if !aborted {
		s.starting = nil
		if err == nil {
			s.current = b
		}
	}
	s.mu.Unlock()

	if err == nil && aborted {
		err = errAborted()
	}
	if err != nil {
		_ = b.Kill()
		return nil, err
	}

	s.publish(models.BridgeEvent{
		Type:      models.EventBridgeConnected,
		Timestamp: models.NowMillis(),
		Payload:   result,
	})
	s.logger.WithField("pid", b.PID()).Info("Bridge connected")
	return b, nil
}

// finishAttempt clears the start slot if att still owns it.
func (s *Supervisor) finishAttempt(att *startAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.starting == att {
		s.starting = nil
	}
}

func errAborted() error {
	return errors.New(errors.ErrCodeCancelled, "bridge disconnected during initialize")
}

// Current returns the live bridge or nil.
func (s *Supervisor) Current() *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Alive() {
		return s.current
	}
	return nil
}

// Status describes the current bridge.
func (s *Supervisor) Status() Status {
	b := s.Current()
	if b == nil {
		return Status{Sessions: len(s.tracker.List())}
	}
	st := b.status()
	st.Sessions = len(s.tracker.List())
	return st
}

// Disconnect kills the current bridge, and any bridge still initializing,
// then waits briefly for them to exit. Pending requests fail with CANCELLED.
func (s *Supervisor) Disconnect() error {
	s.mu.Lock()
	var targets []*Bridge
	if s.current != nil {
		targets = append(targets, s.current)
	}
	if s.starting != nil {
		if s.starting.proc != nil {
			targets = append(targets, s.starting.proc)
		}
		s.starting = nil
	}
	s.current = nil
	s.mu.Unlock()

	var err error
	for _, b := range targets {
		if kerr := b.Kill(); kerr != nil && err == nil {
			err = kerr
		}
	}
	for _, b := range targets {
		select {
		case <-b.Done():
		case <-time.After(disconnectGrace):
			s.logger.WithField("pid", b.PID()).Warn("Bridge did not exit after kill")
		}
	}
	return err
}

func (s *Supervisor) spawn(launcher Launcher) (*Bridge, error) {
	if launcher == nil {
		return nil, errors.New(errors.ErrCodeSpawnFailed, "no bridge launcher configured")
	}
	cmd, err := launcher.Command()
	if err != nil {
		return nil, err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.SpawnFailed(cmd.String(), err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.SpawnFailed(cmd.String(), err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.SpawnFailed(cmd.String(), err)
	}
	if err := cmd.Start(); err != nil {
		if command.IsNotFound(err) {
			return nil, notFoundError(cmd.Path, err)
		}
		return nil, errors.SpawnFailed(cmd.String(), err)
	}

	logger := s.logger.WithField("pid", cmd.Process.Pid)
	b := &Bridge{
		cmd:       cmd,
		transport: newTransport(stdin),
		pending:   newPendingRequests(),
		startedAt: time.Now(),
		done:      make(chan struct{}),
		logger:    logger,
	}
	r := &router{
		pending:   b.pending,
		events:    s.events,
		lifecycle: s.lifecycle,
		tracker:   s.tracker,
		logger:    logger,
		now:       models.NowMillis,
	}
	logger.WithField("command", cmd.String()).Info("Bridge process started")

	s.mu.Lock()
	s.latest = b
	s.mu.Unlock()

	var cancelled int
	b.readers.Go(func() {
		if err := readLines(stdout, r.handleLine); err != nil {
			logger.WithError(err).Debug("Bridge stdout read error")
		}
		cancelled = b.pending.drain()
		logger.WithField("cancelled", cancelled).Info("Bridge stdout reader exited")
	})
	b.readers.Go(func() {
		_ = readLines(stderr, func(line string) {
			s.stderrLog.WithField("pid", cmd.Process.Pid).Debug(line)
			s.publish(models.NewEvent(models.EventBridgeStderr, "", "", map[string]string{"message": line}))
		})
	})

	go func() {
		b.readers.Wait()
		waitErr := cmd.Wait()
		_ = b.transport.close()
		b.mu.Lock()
		b.exitErr = waitErr
		b.mu.Unlock()
		close(b.done)
		logger.WithError(waitErr).Info("Bridge process exited")

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.latest != b {
			return
		}
		s.tracker.Clear()
		s.publish(disconnectedEvent(cancelled, waitErr))
	}()

	return b, nil
}

func (s *Supervisor) handshake(ctx context.Context, b *Bridge, timeout time.Duration) (json.RawMessage, error) {
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := b.SendRequest(hctx, MethodInitialize, InitializeParams{ClientInfo: s.clientInfo})
	if err == nil {
		return result, nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		s.logger.WithField("timeout", timeout).Error("Bridge initialize timed out")
		return nil, errors.Timeout("bridge initialize", timeout)
	}
	s.logger.WithError(err).Error("Bridge initialize failed")
	return nil, err
}

func (s *Supervisor) publish(ev models.BridgeEvent) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// notFoundError is the user-facing error for a missing launcher binary.
func notFoundError(bin string, err error) error {
	return errors.Wrap(err, errors.ErrCodeSpawnFailed,
		fmt.Sprintf("%s not found. Please install Node.js 18+ and ensure it's on your PATH.", bin)).
		WithDetail("command", bin)
}
