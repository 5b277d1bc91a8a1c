// Package server exposes the daemon over HTTP on a Unix socket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/internal/daemon/app"
	"github.com/grovetools/claudemon/pkg/bridge"
)

// RunningConfig is the configuration the daemon started with. It is exposed
// via /api/config so clients can verify what is active.
type RunningConfig struct {
	Socket             string        `json:"socket"`
	Registry           string        `json:"registry"`
	Workspaces         string        `json:"workspaces"`
	ClaudeHome         string        `json:"claude_home"`
	EventBuffer        int           `json:"event_buffer"`
	InitTimeout        time.Duration `json:"init_timeout"`
	TranscriptInterval time.Duration `json:"transcript_interval"`
	StartedAt          time.Time     `json:"started_at"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	app           *app.App
	runningConfig *RunningConfig
	upgrader      websocket.Upgrader
}

// New creates a Server backed by a.
func New(a *app.App, logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		app:    a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Only local processes can reach the socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	mux.HandleFunc("POST /api/rpc/{method...}", s.handleRPC)
	mux.HandleFunc("GET /api/bridge/status", s.handleBridgeStatus)
	mux.HandleFunc("POST /api/bridge/connect", s.handleBridgeConnect)
	mux.HandleFunc("POST /api/bridge/disconnect", s.handleBridgeDisconnect)
	mux.HandleFunc("GET /api/doctor", s.handleDoctor)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/history", s.handleHistory)
	mux.HandleFunc("POST /api/sessions/archive", s.handleArchive)
	mux.HandleFunc("POST /api/sessions/unarchive", s.handleUnarchive)
	mux.HandleFunc("POST /api/sessions/scan", s.handleScan)
	mux.HandleFunc("POST /api/sessions/import", s.handleImport)

	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{
		Handler: h2c.NewHandler(s.Handler(), &http2.Server{}),
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}

// handleRPC dispatches POST /api/rpc/<method> with the body as params. The
// agent's result is returned verbatim.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, errors.InvalidInput("body", err.Error()))
		return
	}
	params, err := bridge.DecodeParams(method, body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.app.Commands.Call(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

func (s *Server) handleBridgeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Supervisor.Status())
}

func (s *Server) handleBridgeConnect(w http.ResponseWriter, r *http.Request) {
	status, err := s.app.Connect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBridgeDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Disconnect(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Supervisor.Status())
}

func (s *Server) handleDoctor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Doctor(r.Context()))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	archived := q.Get("archived") == "1" || q.Get("archived") == "true"
	list, err := s.app.ListSessions(q.Get("workspace"), archived)
	if err != nil && list == nil {
		s.writeError(w, err)
		return
	}
	if err != nil {
		// The list is still correct in memory; only the save failed.
		s.logger.WithError(err).Warn("Failed to persist missing-session flags")
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	history, err := s.app.History(q.Get("workspace"), q.Get("session"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// SessionRequest is the body of the registry mutation endpoints.
type SessionRequest struct {
	WorkspaceID string `json:"workspaceId"`
	SessionID   string `json:"sessionId,omitempty"`
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSessionRequest(w, r)
	if !ok {
		return
	}
	if err := s.app.Archive(req.WorkspaceID, req.SessionID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSessionRequest(w, r)
	if !ok {
		return
	}
	if err := s.app.Unarchive(req.WorkspaceID, req.SessionID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSessionRequest(w, r)
	if !ok {
		return
	}
	found, err := s.app.Scan(req.WorkspaceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSessionRequest(w, r)
	if !ok {
		return
	}
	found, err := s.app.Import(req.WorkspaceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) decodeSessionRequest(w http.ResponseWriter, r *http.Request) (SessionRequest, bool) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.InvalidInput("body", err.Error()))
		return req, false
	}
	return req, true
}

// handleStream provides Server-Sent Events of every BridgeEvent.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.app.Events.Subscribe()
	defer s.app.Events.Unsubscribe(sub)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.WithField("subscriber", sub.ID).Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.WithField("subscriber", sub.ID).Debug("SSE client disconnected")
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleWebSocket streams every BridgeEvent as one text message. Anything
// the client sends is ignored; a read error ends the stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.app.Events.Subscribe()
	defer s.app.Events.Unsubscribe(sub)
	s.logger.WithField("subscriber", sub.ID).Debug("WebSocket client connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeConfigValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeNoSession:
		return http.StatusNotFound
	case errors.ErrCodeTimeout, errors.ErrCodeCommandTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeTransport, errors.ErrCodeSpawnFailed, errors.ErrCodeProtocol, errors.ErrCodeParse:
		return http.StatusBadGateway
	case errors.ErrCodeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	groveErr, ok := errors.As(err)
	if !ok {
		groveErr = errors.Wrap(err, errors.ErrCodeInternal, err.Error())
	}
	status := StatusFor(groveErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Warn("Request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, groveErr.ToJSON())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
