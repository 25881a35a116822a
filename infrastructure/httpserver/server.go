// Package httpserver is the transport adapter: it accepts WebSocket clients and hands
// their frames to the relay, and serves the health and history endpoints.
package httpserver

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Options struct {
	Addr            string
	BufferSize      int
	MaxMessageSize  int64
	AllowedOrigins  []string
	JwtSecret       []byte
	HistoryLimit    int
	ShutdownTimeout time.Duration
}

type Server struct {
	log       *slog.Logger
	opts      Options
	relay     *runtime.Relay
	heartbeat *workers.HeartbeatWorker
	upgrader  websocket.Upgrader
	conns     *connections
	ln        net.Listener
}

func NewServer(log *slog.Logger, opts Options, relay *runtime.Relay, heartbeat *workers.HeartbeatWorker) *Server {
	s := &Server{
		log:       log,
		opts:      opts,
		relay:     relay,
		heartbeat: heartbeat,
		conns:     newConnections(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Listen binds Options.Addr so that an unavailable port fails at startup.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Run serves until ctx is done, then shuts the server down, closes every live
// WebSocket connection and waits for the frames still being handled.
// It binds the address itself when Listen was not called.
func (s *Server) Run(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	ln := s.ln
	s.ln = nil
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		// Shutdown does not track hijacked connections, their read pumps are awaited here.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("HTTP server shutdown failed", "error", err)
		}
		s.conns.closeAll()
		if err := s.conns.wait(shutdownCtx); err != nil {
			s.log.Warn("Connections still busy after shutdown timeout", "remaining", s.conns.count(), "error", err)
		}
		s.log.Info("HTTP server stopped")
		return nil
	}
}

// Router builds the routes. ctx bounds the lifetime of the WebSocket sessions; it is
// detached from cancellation for relay calls so an in-flight post completes on shutdown.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	relayCtx := context.WithoutCancel(ctx)

	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.log, s.opts.JwtSecret))
		r.Get("/rooms/{roomID}/messages", s.handleHistory)
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			s.handleWebSocket(relayCtx, w, r)
		})
	})
	return r
}

func (s *Server) handleWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := newConnection(s.log, ws, s.opts.BufferSize)
	userID, _ := auth.UserIDFromContext(r.Context())
	conn.log.Debug("Connection accepted", "remote_addr", r.RemoteAddr, "user_id", userID)

	s.conns.add(conn)
	session := s.relay.Attach(conn)

	go conn.writePump()
	go func() {
		defer s.conns.remove(conn)
		conn.readPump(ctx, s.relay, session, s.opts.MaxMessageSize)
	}()
}

// checkOrigin accepts requests without an Origin header (non-browser clients) and
// origins listed in AllowedOrigins, "*" accepting all.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || lo.Contains(s.opts.AllowedOrigins, "*") {
		return true
	}
	if lo.Contains(s.opts.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return lo.Contains(s.opts.AllowedOrigins, u.Host)
}

type healthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Topics      int    `json:"topics"`
	Connections int    `json:"connections"`
	RssBytes    uint64 `json:"rssBytes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.heartbeat.Collect()
	if err != nil {
		s.log.Warn("Failed to collect self stats", "error", err)
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Rooms:       stats.Rooms,
		Topics:      stats.Topics,
		Connections: s.conns.count(),
		RssBytes:    stats.RssBytes,
	})
}

type historyResponse struct {
	Messages   []event.Message `json:"messages"`
	NextBefore *int64          `json:"nextBefore"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	roomID, err := url.PathUnescape(chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid roomID")
		return
	}
	cmd := chat.GetMessageCommand{RoomID: chat.RoomID(roomID), Limit: s.opts.HistoryLimit}

	query := r.URL.Query()
	if raw := query.Get("before"); raw != "" {
		if cmd.Before, err = strconv.ParseInt(raw, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "before must be an integer")
			return
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if cmd.Limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}

	messages, err := s.relay.History(r.Context(), cmd)
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("Failed to load history", "room_id", cmd.RoomID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.MsgInternal)
		return
	}

	resp := historyResponse{
		Messages: lo.Map(messages, func(m chat.Message, _ int) event.Message {
			return event.NewMessage(m)
		}),
	}
	if len(messages) == cmd.Limit {
		resp.NextBefore = lo.ToPtr(messages[len(messages)-1].ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
