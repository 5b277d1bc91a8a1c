package errors

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *GroveError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *GroveError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// Transport creates an error for a failed read or write on the agent's streams.
func Transport(op string, err error) *GroveError {
	return Wrap(err, ErrCodeTransport, fmt.Sprintf("bridge %s failed", op)).
		WithDetail("op", op)
}

// SpawnFailed creates an error for an agent process that could not be started.
func SpawnFailed(command string, err error) *GroveError {
	return Wrap(err, ErrCodeSpawnFailed, fmt.Sprintf("failed to spawn agent: %s", command)).
		WithDetail("command", command)
}

// ParseError creates an error for an inbound line that is not valid JSON.
func ParseError(err error) *GroveError {
	return Wrap(err, ErrCodeParse, "failed to parse agent message")
}

// Protocol creates an error from a response that carried an error payload.
// The payload is preserved verbatim in the details.
func Protocol(method string, payload json.RawMessage) *GroveError {
	msg := string(payload)
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Message != "" {
		msg = body.Message
	} else {
		var s string
		if err := json.Unmarshal(payload, &s); err == nil {
			msg = s
		}
	}
	return New(ErrCodeProtocol, fmt.Sprintf("%s: %s", method, msg)).
		WithDetail("method", method).
		WithDetail("payload", payload)
}

// Timeout creates an error for an operation that exceeded its deadline.
func Timeout(op string, after time.Duration) *GroveError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", op, after)).
		WithDetail("op", op).
		WithDetail("timeout", after.String())
}

// Cancelled creates an error for a request whose process went away before replying.
func Cancelled(method string, id uint64) *GroveError {
	return New(ErrCodeCancelled, fmt.Sprintf("request %d (%s) cancelled: bridge process exited", id, method)).
		WithDetail("method", method).
		WithDetail("id", id)
}

// Persistence creates an error for a failed registry write or read.
func Persistence(path string, err error) *GroveError {
	return Wrap(err, ErrCodePersistence, fmt.Sprintf("failed to persist %s", path)).
		WithDetail("path", path)
}

// SessionNotFound creates an error for an unknown session id.
func SessionNotFound(sessionID string) *GroveError {
	return New(ErrCodeNotFound, fmt.Sprintf("Session %s not found", sessionID)).
		WithDetail("sessionId", sessionID)
}

// WorkspaceNotFound creates an error for an unknown workspace id.
func WorkspaceNotFound(workspaceID string) *GroveError {
	return New(ErrCodeNotFound, fmt.Sprintf("Workspace %s not found", workspaceID)).
		WithDetail("workspaceId", workspaceID)
}

// NoActiveSession is returned when a call needs a session and none is tracked.
func NoActiveSession() *GroveError {
	return New(ErrCodeNoSession, "No active Claude session found")
}

// InvalidInput creates an error for a malformed request argument.
func InvalidInput(field, reason string) *GroveError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *GroveError {
	groveErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		groveErr = groveErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return groveErr
}
