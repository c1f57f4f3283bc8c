// Package web provides the HTTP surface for the activity-sensor daemon:
// a status page, the live stream over SSE and WebSocket, and replay control.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/hub"
	"github.com/sweeney/activity-sensor/internal/logic"
	"github.com/sweeney/activity-sensor/internal/replay"
	"github.com/sweeney/activity-sensor/internal/status"
)

// keepaliveInterval is how often idle SSE connections receive a comment frame
// so proxies do not reap them.
const keepaliveInterval = 15 * time.Second

// ReplayConfig describes the recorded log the /api/replay endpoint serves.
type ReplayConfig struct {
	Path       string
	Interval   time.Duration
	Thresholds logic.Thresholds
}

// Options configures a Server.
type Options struct {
	Addr    string
	Tracker *status.Tracker
	Hub     *hub.Hub
	Logger  *zap.Logger
	Replay  ReplayConfig

	// SkipHistory disables the history seed on new stream connections.
	SkipHistory bool

	// BaseContext bounds background work started by handlers (replay).
	// Defaults to context.Background().
	BaseContext context.Context
}

// Server serves the status page and stream endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	hub        *hub.Hub
	logger     *zap.Logger
	replay     ReplayConfig

	skipHistory bool
	baseCtx     context.Context
	upgrader    websocket.Upgrader
}

// New creates a Server from opts.
func New(opts Options) *Server {
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		tracker:     opts.Tracker,
		hub:         opts.Hub,
		logger:      opts.Logger,
		replay:      opts.Replay,
		skipHistory: opts.SkipHistory,
		baseCtx:     baseCtx,
		upgrader: websocket.Upgrader{
			// The page is served from the same origin; embedded dashboards
			// connect cross-origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/replay", s.handleReplay)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"mode":   string(snap.Mode),
	})
}

// handleEvents streams classified states as Server-Sent Events. New
// connections are seeded with the recent history window before live delivery.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	past, sub := s.subscribe(r.Context())
	defer sub.Cancel()

	s.logger.Info("sse client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("seeded", len(past)),
	)

	for _, st := range past {
		if err := writeEvent(w, st); err != nil {
			return
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", zap.String("remote", r.RemoteAddr))
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case st, open := <-sub.States():
			if !open {
				return
			}
			if err := writeEvent(w, st); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleStream serves the same feed over a WebSocket.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain incoming frames so close handshakes are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	past, sub := s.subscribe(ctx)
	defer sub.Cancel()

	s.logger.Info("websocket client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("seeded", len(past)),
	)

	for _, st := range past {
		if err := conn.WriteJSON(st); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, open := <-sub.States():
			if !open {
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		}
	}
}

// handleReplay kicks off a replay of the recorded log. The replay runs in the
// background; the response only acknowledges the start.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if s.replay.Path == "" {
		http.Error(w, "replay log not configured", http.StatusNotFound)
		return
	}

	replay.Start(s.baseCtx, s.replay.Path, s.replay.Interval, s.replay.Thresholds, s.hub, s.logger)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "replay started",
		"path":   s.replay.Path,
	})
}

func (s *Server) subscribe(ctx context.Context) ([]logic.State, *hub.Subscription) {
	if s.skipHistory {
		return nil, s.hub.Subscribe(0)
	}
	return s.hub.SubscribeWithHistory(ctx, 0)
}

func writeEvent(w http.ResponseWriter, st logic.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: sensor-data\ndata: %s\n\n", data)
	return err
}
