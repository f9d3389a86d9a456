// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/dispatch"
	"github.com/roomcast/roomcast/internal/protocol"
	"github.com/roomcast/roomcast/internal/room"
)

type fixture struct {
	registry *room.Registry
	server   *Server
	http     *httptest.Server
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	reg := room.NewRegistry()
	d := dispatch.New(reg, dispatch.DefaultConfig())
	srv := NewServer(cfg, d)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return &fixture{registry: reg, server: srv, http: ts}
}

func (f *fixture) url() string {
	return "ws" + strings.TrimPrefix(f.http.URL, "http")
}

// dial establishes a WebSocket connection to the test server
func (f *fixture) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url(), header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *fixture) waitMembers(t *testing.T, roomName string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.registry.MembersOf(roomName)) == n
	}, 2*time.Second, 10*time.Millisecond, "room %q never reached %d members", roomName, n)
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func receive(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestServer_JoinAndChat(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	alice := f.dial(t, nil)
	bob := f.dial(t, nil)

	send(t, alice, `{"type":"init","room":"lobby","nick":"alice"}`)
	send(t, bob, `{"type":"init","room":"lobby","nick":"bob"}`)
	f.waitMembers(t, "lobby", 2)

	send(t, alice, `{"type":"msg","msg":"hi"}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		got := receive(t, conn)
		assert.Equal(t, "msg", got["type"])
		assert.Equal(t, "hi", got["msg"])
		assert.Equal(t, "alice", got["sendUser"])
	}
	assert.Equal(t, 2, f.server.Active())
}

func TestServer_StalledPeerDoesNotBlockBroadcast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendQueueSize = 16
	cfg.WriteWait = 3 * time.Second
	cfg.Compression = false
	f := newFixture(t, cfg)

	stalled := f.dial(t, nil)
	reader := f.dial(t, nil)
	send(t, stalled, `{"type":"init","room":"lobby","nick":"stalled"}`)
	send(t, reader, `{"type":"init","room":"lobby","nick":"reader"}`)
	f.waitMembers(t, "lobby", 2)

	// stalled never reads again; reader drains everything.
	var received atomic.Int64
	go func() {
		for {
			if _, _, err := reader.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	const maxBroadcastLatency = 250 * time.Millisecond
	payload := strings.Repeat("x", 512<<10)

	sent, sawFailure, afterFailure := 0, false, 0
	for i := 0; i < 200 && afterFailure < 5; i++ {
		start := time.Now()
		res := f.registry.Broadcast("lobby", payload)
		elapsed := time.Since(start)
		sent++

		require.Less(t, elapsed, maxBroadcastLatency, "broadcast %d blocked on the stalled peer", i)
		if len(res.Failures) > 0 {
			sawFailure = true
		}
		if sawFailure {
			afterFailure++
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.True(t, sawFailure, "stalled peer never overflowed its send queue")
	f.waitMembers(t, "lobby", 1)
	assert.Eventually(t, func() bool {
		return received.Load() == int64(sent)
	}, 5*time.Second, 10*time.Millisecond, "reader missed broadcasts: got %d of %d", received.Load(), sent)
}

func TestServer_MalformedFrameKeepsConnection(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	conn := f.dial(t, nil)

	send(t, conn, `not json`)
	got := receive(t, conn)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, protocol.CodeProtocolViolation, got["code"])

	send(t, conn, `{"type":"init","room":"lobby","nick":"carol"}`)
	f.waitMembers(t, "lobby", 1)
}

func TestServer_BinaryFrameIgnored(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	conn := f.dial(t, nil)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"type":"init","room":"lobby"}`)))
	send(t, conn, `{"type":"init","room":"hall","nick":"dave"}`)

	f.waitMembers(t, "hall", 1)
	assert.Empty(t, f.registry.MembersOf("lobby"))
}

func TestServer_DisconnectLeavesRoom(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	conn := f.dial(t, nil)

	send(t, conn, `{"type":"init","room":"lobby","nick":"erin"}`)
	f.waitMembers(t, "lobby", 1)

	require.NoError(t, conn.Close())
	f.waitMembers(t, "lobby", 0)
	require.Eventually(t, func() bool { return f.server.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_IdleTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 200 * time.Millisecond
	cfg.PingInterval = time.Hour
	f := newFixture(t, cfg)

	conn := f.dial(t, nil)
	send(t, conn, `{"type":"init","room":"lobby","nick":"frank"}`)
	f.waitMembers(t, "lobby", 1)

	got := receive(t, conn)
	assert.Equal(t, "close", got["type"])
	assert.Equal(t, protocol.CloseReasonIdle, got["reason"])

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	f.waitMembers(t, "lobby", 0)
}

func TestServer_PongsKeepConnectionAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 300 * time.Millisecond
	cfg.PingInterval = 100 * time.Millisecond
	f := newFixture(t, cfg)

	conn := f.dial(t, nil)
	send(t, conn, `{"type":"init","room":"lobby","nick":"grace"}`)
	f.waitMembers(t, "lobby", 1)

	// Reading lets the default ping handler answer with pongs.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	time.Sleep(4 * cfg.IdleTimeout)
	assert.Len(t, f.registry.MembersOf("lobby"), 1)
	select {
	case err := <-readErr:
		t.Fatalf("connection dropped while answering pings: %v", err)
	default:
	}
}

func TestServer_ReadLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMessageSize = 128
	f := newFixture(t, cfg)

	conn := f.dial(t, nil)
	send(t, conn, `{"type":"init","room":"lobby","nick":"heidi"}`)
	f.waitMembers(t, "lobby", 1)

	send(t, conn, `{"type":"msg","msg":"`+strings.Repeat("x", 512)+`"}`)
	f.waitMembers(t, "lobby", 0)
}

func TestServer_OriginCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://chat.example"}
	f := newFixture(t, cfg)

	f.dial(t, http.Header{"Origin": []string{"https://chat.example"}})
	f.dial(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(f.url(), http.Header{"Origin": []string{"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_SameHostOriginWithoutAllowList(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.dial(t, http.Header{"Origin": []string{f.http.URL}})

	_, resp, err := websocket.DefaultDialer.Dial(f.url(), http.Header{"Origin": []string{"https://other.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_ShutdownDrainsAndRefuses(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	conn := f.dial(t, nil)
	send(t, conn, `{"type":"init","room":"lobby","nick":"ivan"}`)
	f.waitMembers(t, "lobby", 1)
	idle := f.dial(t, nil)
	require.Eventually(t, func() bool { return f.server.Active() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, f.server.Accepting())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))

	assert.Equal(t, 0, f.server.Active())
	assert.False(t, f.server.Accepting())
	for _, c := range []*websocket.Conn{conn, idle} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := c.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}

	_, resp, err := websocket.DefaultDialer.Dial(f.url(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
		WebSocket: config.WebSocketConfig{
			IdleTimeout:    30 * time.Second,
			PingInterval:   20 * time.Second,
			WriteWait:      5 * time.Second,
			MaxMessageSize: 2048,
			SendQueueSize:  32,
			Compression:    true,
		},
	}

	got := ConfigFrom(cfg)
	assert.Equal(t, 30*time.Second, got.IdleTimeout)
	assert.Equal(t, 20*time.Second, got.PingInterval)
	assert.Equal(t, int64(2048), got.MaxMessageSize)
	assert.Equal(t, 32, got.SendQueueSize)
	assert.True(t, got.Compression)
	assert.Equal(t, []string{"*"}, got.AllowedOrigins)
}

func TestSanitizeLogValue(t *testing.T) {
	assert.Equal(t, `https://a\nb`, sanitizeLogValue("https://a\nb"))
	assert.Len(t, sanitizeLogValue(strings.Repeat("a", 500)), 200)
}
