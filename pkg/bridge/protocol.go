package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/grovetools/claudemon/errors"
)

// Outbound method names.
const (
	MethodInitialize        = "initialize"
	MethodSessionStart      = "session/start"
	MethodSessionResume     = "session/resume"
	MethodSessionClose      = "session/close"
	MethodSessionRewind     = "session/rewind"
	MethodMessageSend       = "message/send"
	MethodMessageInterrupt  = "message/interrupt"
	MethodPermissionRespond = "permission/respond"
	MethodModelList         = "model/list"
	MethodCommandList       = "command/list"
	MethodMCPStatus         = "mcp/status"
	MethodMCPSet            = "mcp/set"
)

// Params is the typed body of one outbound method.
type Params interface {
	Method() string
	Validate() error
}

// ClientInfo identifies this process in the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is sent once per process.
type InitializeParams struct {
	ClientInfo ClientInfo `json:"clientInfo"`
}

func (InitializeParams) Method() string { return MethodInitialize }

func (p InitializeParams) Validate() error {
	return required("clientInfo.name", p.ClientInfo.Name)
}

// Permission modes accepted by session/start.
var permissionModes = map[string]bool{
	"default":           true,
	"acceptEdits":       true,
	"bypassPermissions": true,
	"plan":              true,
}

// StartSessionParams starts a new agent session in a workspace directory.
type StartSessionParams struct {
	WorkspaceID             string          `json:"workspaceId"`
	Cwd                     string          `json:"cwd"`
	Model                   *string         `json:"model"`
	PermissionMode          string          `json:"permissionMode"`
	ClaudeCodeBin           *string         `json:"claudeCodeBin"`
	EnableFileCheckpointing *bool           `json:"enableFileCheckpointing"`
	MCPServers              json.RawMessage `json:"mcpServers"`
	Plugins                 json.RawMessage `json:"plugins"`
	Agents                  json.RawMessage `json:"agents"`
}

func (StartSessionParams) Method() string { return MethodSessionStart }

func (p StartSessionParams) Validate() error {
	if err := required("workspaceId", p.WorkspaceID); err != nil {
		return err
	}
	if err := required("cwd", p.Cwd); err != nil {
		return err
	}
	if p.PermissionMode != "" && !permissionModes[p.PermissionMode] {
		return errors.InvalidInput("permissionMode", fmt.Sprintf("unknown mode %q", p.PermissionMode))
	}
	return nil
}

// ResumeSessionParams reattaches to an existing session.
type ResumeSessionParams struct {
	WorkspaceID   string  `json:"workspaceId"`
	SessionID     string  `json:"sessionId"`
	Cwd           string  `json:"cwd"`
	ClaudeCodeBin *string `json:"claudeCodeBin"`
}

func (ResumeSessionParams) Method() string { return MethodSessionResume }

func (p ResumeSessionParams) Validate() error {
	return firstError(
		required("workspaceId", p.WorkspaceID),
		required("sessionId", p.SessionID),
		required("cwd", p.Cwd),
	)
}

// CloseSessionParams ends a session.
type CloseSessionParams struct {
	SessionID string `json:"sessionId"`
}

func (CloseSessionParams) Method() string { return MethodSessionClose }

func (p CloseSessionParams) Validate() error { return required("sessionId", p.SessionID) }

// RewindParams restores files to their state at a user message.
type RewindParams struct {
	SessionID     string `json:"sessionId"`
	UserMessageID string `json:"userMessageId"`
	DryRun        *bool  `json:"dryRun"`
}

func (RewindParams) Method() string { return MethodSessionRewind }

func (p RewindParams) Validate() error {
	return firstError(
		required("sessionId", p.SessionID),
		required("userMessageId", p.UserMessageID),
	)
}

// SendMessageParams sends a user turn.
type SendMessageParams struct {
	SessionID   string   `json:"sessionId"`
	WorkspaceID string   `json:"workspaceId"`
	Message     string   `json:"message"`
	Images      []string `json:"images"`
	MessageID   *string  `json:"messageId"`
}

func (SendMessageParams) Method() string { return MethodMessageSend }

func (p SendMessageParams) Validate() error {
	if err := required("sessionId", p.SessionID); err != nil {
		return err
	}
	if strings.TrimSpace(p.Message) == "" && len(p.Images) == 0 {
		return errors.InvalidInput("message", "message or images required")
	}
	return nil
}

// InterruptParams stops the turn in progress.
type InterruptParams struct {
	SessionID string `json:"sessionId"`
}

func (InterruptParams) Method() string { return MethodMessageInterrupt }

func (p InterruptParams) Validate() error { return required("sessionId", p.SessionID) }

// PermissionResponseParams answers a tool permission prompt.
type PermissionResponseParams struct {
	SessionID string  `json:"sessionId"`
	ToolUseID string  `json:"toolUseId"`
	Decision  string  `json:"decision"`
	Message   *string `json:"message"`
}

func (PermissionResponseParams) Method() string { return MethodPermissionRespond }

func (p PermissionResponseParams) Validate() error {
	return firstError(
		required("sessionId", p.SessionID),
		required("toolUseId", p.ToolUseID),
		required("decision", p.Decision),
	)
}

// ModelListParams lists models; an empty session id is resolved by Commands.
type ModelListParams struct {
	SessionID string `json:"sessionId"`
}

func (ModelListParams) Method() string { return MethodModelList }

func (p ModelListParams) Validate() error { return required("sessionId", p.SessionID) }

// CommandListParams lists slash commands. The session is optional.
type CommandListParams struct {
	SessionID *string `json:"sessionId"`
}

func (CommandListParams) Method() string { return MethodCommandList }

func (CommandListParams) Validate() error { return nil }

// MCPStatusParams queries MCP server state.
type MCPStatusParams struct {
	SessionID string `json:"sessionId"`
}

func (MCPStatusParams) Method() string { return MethodMCPStatus }

func (p MCPStatusParams) Validate() error { return required("sessionId", p.SessionID) }

// MCPSetParams replaces a session's MCP servers.
type MCPSetParams struct {
	SessionID string          `json:"sessionId"`
	Servers   json.RawMessage `json:"servers"`
}

func (MCPSetParams) Method() string { return MethodMCPSet }

func (p MCPSetParams) Validate() error {
	if err := required("sessionId", p.SessionID); err != nil {
		return err
	}
	if !isPresent(p.Servers) {
		return errors.InvalidInput("servers", "required")
	}
	return nil
}

// methodTable maps each method to a constructor of its params.
var methodTable = map[string]func() Params{
	MethodSessionStart:      func() Params { return &StartSessionParams{} },
	MethodSessionResume:     func() Params { return &ResumeSessionParams{} },
	MethodSessionClose:      func() Params { return &CloseSessionParams{} },
	MethodSessionRewind:     func() Params { return &RewindParams{} },
	MethodMessageSend:       func() Params { return &SendMessageParams{} },
	MethodMessageInterrupt:  func() Params { return &InterruptParams{} },
	MethodPermissionRespond: func() Params { return &PermissionResponseParams{} },
	MethodModelList:         func() Params { return &ModelListParams{} },
	MethodCommandList:       func() Params { return &CommandListParams{} },
	MethodMCPStatus:         func() Params { return &MCPStatusParams{} },
	MethodMCPSet:            func() Params { return &MCPSetParams{} },
}

// Methods returns the callable method names, sorted.
func Methods() []string {
	out := make([]string, 0, len(methodTable))
	for m := range methodTable {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// DecodeParams decodes raw into the params type for method. Unknown fields
// are rejected. Validation is left to the caller because some methods fill
// fields in before sending.
func DecodeParams(method string, raw json.RawMessage) (Params, error) {
	ctor, ok := methodTable[method]
	if !ok {
		return nil, errors.InvalidInput("method", fmt.Sprintf("unknown method %q", method))
	}
	p := ctor()
	if !isPresent(raw) {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, errors.InvalidInput("params", err.Error())
	}
	return p, nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.InvalidInput(field, "required")
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
