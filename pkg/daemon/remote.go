package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/bridge"
	"github.com/grovetools/claudemon/pkg/models"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a
// Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a RemoteClient for the daemon socket. Nothing is
// dialed until the first call.
func NewRemoteClient(socketPath string) *RemoteClient {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &RemoteClient{
		// Agent calls can run for minutes; callers bound them with ctx.
		httpClient: &http.Client{Transport: transport},
		socketPath: socketPath,
	}
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// Call posts params to /api/rpc/<method>.
func (c *RemoteClient) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/api/rpc/"+method, bytes.NewReader(params), &out)
	return out, err
}

// BridgeStatus reads /api/bridge/status.
func (c *RemoteClient) BridgeStatus(ctx context.Context) (bridge.Status, error) {
	var st bridge.Status
	err := c.do(ctx, http.MethodGet, "/api/bridge/status", nil, &st)
	return st, err
}

// Connect asks the daemon to start the agent.
func (c *RemoteClient) Connect(ctx context.Context) (bridge.Status, error) {
	var st bridge.Status
	err := c.do(ctx, http.MethodPost, "/api/bridge/connect", nil, &st)
	return st, err
}

// Disconnect asks the daemon to stop the agent.
func (c *RemoteClient) Disconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/bridge/disconnect", nil, nil)
}

// Doctor runs the daemon's toolchain checks.
func (c *RemoteClient) Doctor(ctx context.Context) (models.DoctorResult, error) {
	var res models.DoctorResult
	err := c.do(ctx, http.MethodGet, "/api/doctor", nil, &res)
	return res, err
}

// ListSessions reads /api/sessions.
func (c *RemoteClient) ListSessions(ctx context.Context, workspaceID string, archived bool) ([]models.SessionEntry, error) {
	q := url.Values{"workspace": {workspaceID}}
	if archived {
		q.Set("archived", "1")
	}
	var out []models.SessionEntry
	err := c.do(ctx, http.MethodGet, "/api/sessions?"+q.Encode(), nil, &out)
	return out, err
}

// Archive hides a session.
func (c *RemoteClient) Archive(ctx context.Context, workspaceID, sessionID string) error {
	return c.postSession(ctx, "archive", workspaceID, sessionID, nil)
}

// Unarchive shows a session again.
func (c *RemoteClient) Unarchive(ctx context.Context, workspaceID, sessionID string) error {
	return c.postSession(ctx, "unarchive", workspaceID, sessionID, nil)
}

// Scan lists transcripts for a workspace.
func (c *RemoteClient) Scan(ctx context.Context, workspaceID string) ([]models.SessionEntry, error) {
	var out []models.SessionEntry
	err := c.postSession(ctx, "scan", workspaceID, "", &out)
	return out, err
}

// Import scans a workspace and registers what it finds.
func (c *RemoteClient) Import(ctx context.Context, workspaceID string) ([]models.SessionEntry, error) {
	var out []models.SessionEntry
	err := c.postSession(ctx, "import", workspaceID, "", &out)
	return out, err
}

// History reads /api/sessions/history.
func (c *RemoteClient) History(ctx context.Context, workspaceID, sessionID string) (*models.SessionHistory, error) {
	q := url.Values{"workspace": {workspaceID}, "session": {sessionID}}
	var out models.SessionHistory
	if err := c.do(ctx, http.MethodGet, "/api/sessions/history?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RemoteClient) postSession(ctx context.Context, action, workspaceID, sessionID string, out interface{}) error {
	body, err := json.Marshal(map[string]string{"workspaceId": workspaceID, "sessionId": sessionID})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/sessions/"+action, bytes.NewReader(body), out)
}

// do performs one request. Non-200 responses are decoded back into a
// GroveError when the body carries one.
func (c *RemoteClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "failed to reach daemon")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read daemon response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var ge errors.GroveError
		if json.Unmarshal(data, &ge) == nil && ge.Code != "" {
			return &ge
		}
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], bytes.TrimSpace(data)...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}
	return nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamEvents subscribes to BridgeEvents via Server-Sent Events.
func (c *RemoteClient) StreamEvents(ctx context.Context) (<-chan models.BridgeEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "failed to connect to stream")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan models.BridgeEvent, 16)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev models.BridgeEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// StreamEventsWS subscribes to BridgeEvents over the daemon's websocket.
func (c *RemoteClient) StreamEventsWS(ctx context.Context) (<-chan models.BridgeEvent, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", c.socketPath)
		},
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, "ws://unix/api/ws", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "failed to open websocket")
	}

	ch := make(chan models.BridgeEvent, 16)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	go func() {
		defer close(ch)
		for {
			var ev models.BridgeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
