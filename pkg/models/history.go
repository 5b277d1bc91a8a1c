package models

// HistoryItem is one rendered turn of a session transcript.
type HistoryItem struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// SessionHistory is the parsed transcript of one session.
type SessionHistory struct {
	SessionID    string        `json:"sessionId"`
	Items        []HistoryItem `json:"items"`
	Preview      *string       `json:"preview"`
	LastActivity int64         `json:"lastActivity"`
	Status       SessionStatus `json:"status"`
}

// DoctorResult reports whether the agent's toolchain is reachable.
type DoctorResult struct {
	OK            bool    `json:"ok"`
	NodeOK        bool    `json:"nodeOk"`
	NodeVersion   *string `json:"nodeVersion"`
	NodeDetails   *string `json:"nodeDetails"`
	ClaudeOK      bool    `json:"claudeOk"`
	ClaudeVersion *string `json:"claudeVersion"`
	ClaudeDetails *string `json:"claudeDetails"`
	Path          *string `json:"path"`
}

// TrackedSession is the bridge's in-memory record of a live session.
type TrackedSession struct {
	SessionID   string `json:"sessionId"`
	WorkspaceID string `json:"workspaceId"`
	Cwd         string `json:"cwd"`
	Model       string `json:"model,omitempty"`
	StartedAt   int64  `json:"startedAt"`
}
