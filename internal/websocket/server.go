// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/session"
)

// Hooks receives connection lifecycle events. *dispatch.Dispatcher
// implements it.
type Hooks interface {
	OnConnect(h *session.Handle)
	HandleMessage(h *session.Handle, data []byte) error
	OnIdleTimeout(h *session.Handle)
	OnDisconnect(h *session.Handle)
}

// Config holds transport settings.
type Config struct {
	IdleTimeout      time.Duration
	PingInterval     time.Duration
	WriteWait        time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	SendQueueSize    int
	ReadBufferSize   int
	WriteBufferSize  int
	Compression      bool

	// AllowedOrigins lists accepted Origin headers. "*" accepts any origin;
	// an empty list accepts same-host origins only. Requests without an
	// Origin header come from non-browser clients and are accepted.
	AllowedOrigins []string
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:      60 * time.Second,
		PingInterval:     54 * time.Second,
		WriteWait:        10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   10240,
		SendQueueSize:    session.DefaultQueueSize,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		Compression:      true,
	}
}

// ConfigFrom builds a transport Config from application configuration.
func ConfigFrom(cfg *config.Config) Config {
	ws := cfg.WebSocket
	return Config{
		IdleTimeout:      ws.IdleTimeout,
		PingInterval:     ws.PingInterval,
		WriteWait:        ws.WriteWait,
		HandshakeTimeout: ws.HandshakeTimeout,
		MaxMessageSize:   ws.MaxMessageSize,
		SendQueueSize:    ws.SendQueueSize,
		ReadBufferSize:   ws.ReadBufferSize,
		WriteBufferSize:  ws.WriteBufferSize,
		Compression:      ws.Compression,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	}
}

// Server upgrades HTTP requests to WebSocket connections and drives each
// connection's read loop and keepalive.
type Server struct {
	cfg      Config
	hooks    Hooks
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*session.Handle]struct{}
	stopping atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a Server that reports connection events to hooks.
func NewServer(cfg Config, hooks Hooks) *Server {
	s := &Server{
		cfg:   cfg,
		hooks: hooks,
		conns: make(map[*session.Handle]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		EnableCompression: cfg.Compression,
		CheckOrigin:       s.checkOrigin,
	}
	return s
}

// ServeHTTP upgrades the request and starts serving the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.stopping.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		metrics.RecordWSError("upgrade")
		logging.Ctx(r.Context()).Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	s.wg.Add(1)
	go s.serve(context.WithoutCancel(r.Context()), ws)
}

// Active returns the number of open connections.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Accepting reports whether new upgrades are accepted.
func (s *Server) Accepting() bool {
	return !s.stopping.Load()
}

// Shutdown stops accepting upgrades and drains every open connection,
// including ones that never joined a room. Connections still open when
// ctx expires are force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopping.Store(true)

	s.mu.Lock()
	handles := make([]*session.Handle, 0, len(s.conns))
	for h := range s.conns {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	var forced atomic.Int32
	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *session.Handle) {
			defer wg.Done()
			if err := h.Drain(ctx); err != nil {
				forced.Add(1)
			}
		}(h)
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if n := forced.Load(); n > 0 {
		return fmt.Errorf("%d websocket connections force-closed: %w", n, ctx.Err())
	}
	return nil
}

// serve runs one connection. ctx carries the upgrade request's log fields.
func (s *Server) serve(ctx context.Context, ws *websocket.Conn) {
	defer s.wg.Done()

	if s.cfg.Compression {
		ws.EnableWriteCompression(true)
	}

	conn := newConn(ws, s.cfg.WriteWait)
	h := session.New(conn, session.WithQueueSize(s.cfg.SendQueueSize))
	s.track(h)
	defer s.untrack(h)

	metrics.RecordConnectionOpened()
	defer metrics.RecordConnectionClosed()

	ctx = logging.ContextWithConnID(ctx, h.ID())
	logging.Ctx(ctx).Debug().Str("remote_addr", conn.RemoteAddr()).Msg("WebSocket connection opened")

	s.hooks.OnConnect(h)
	go s.keepalive(conn, h)
	s.readLoop(ws, h)
}

// readLoop reads text frames until the connection fails. Any inbound frame,
// pongs included, pushes the read deadline forward.
func (s *Server) readLoop(ws *websocket.Conn, h *session.Handle) {
	ws.SetReadLimit(s.cfg.MaxMessageSize)
	extend := func() error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	}
	if err := extend(); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		s.hooks.OnDisconnect(h)
		return
	}
	ws.SetPongHandler(func(string) error { return extend() })

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			s.readFailed(h, err)
			return
		}
		if err := extend(); err != nil {
			s.hooks.OnDisconnect(h)
			return
		}

		if msgType != websocket.TextMessage {
			metrics.RecordProtocolViolation("binary_frame")
			logging.Debug().Str("conn_id", h.ID()).Msg("dropping non-text frame")
			continue
		}
		if err := s.hooks.HandleMessage(h, data); err != nil {
			logging.Debug().Err(err).Str("conn_id", h.ID()).Msg("frame rejected")
		}
	}
}

func (s *Server) readFailed(h *session.Handle, err error) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() && !h.Closed() {
		s.hooks.OnIdleTimeout(h)
		return
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		metrics.RecordWSError("read_limit")
		logging.Warn().Str("conn_id", h.ID()).Int64("limit", s.cfg.MaxMessageSize).Msg("inbound frame too large")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived):
		if !h.Closed() {
			metrics.RecordWSError("read")
			logging.Warn().Err(err).Str("conn_id", h.ID()).Msg("unexpected websocket close error")
		}
	}
	s.hooks.OnDisconnect(h)
}

// keepalive pings the peer until the handle is torn down.
func (s *Server) keepalive(conn *Conn, h *session.Handle) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				metrics.RecordWSError("ping")
				h.Close()
				return
			}
		}
	}
}

func (s *Server) track(h *session.Handle) {
	s.mu.Lock()
	s.conns[h] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(h *session.Handle) {
	s.mu.Lock()
	delete(s.conns, h)
	s.mu.Unlock()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.cfg.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue quotes and truncates untrusted header values.
func sanitizeLogValue(v string) string {
	const maxLen = 200
	if len(v) > maxLen {
		v = v[:maxLen]
	}
	q := strconv.Quote(v)
	return q[1 : len(q)-1]
}
