// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/session/sessiontest"
)

// decodedResponse mirrors APIResponse with raw data for per-test decoding.
type decodedResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decodedResponse {
	t.Helper()
	var resp decodedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func joinAs(t *testing.T, reg *room.Registry, roomName, nick string) *session.Handle {
	t.Helper()
	h, _ := sessiontest.NewHandle()
	h.SetNickname(nick)
	if err := reg.Join(roomName, h); err != nil {
		t.Fatalf("Join(%s, %s) failed: %v", roomName, nick, err)
	}
	t.Cleanup(h.Close)
	return h
}

type testRouter struct {
	handler  *Handler
	registry *room.Registry
	http     http.Handler
	wsHits   int
}

func newTestRouter(t *testing.T, mc *ChiMiddlewareConfig) *testRouter {
	t.Helper()
	tr := &testRouter{registry: room.NewRegistry()}
	tr.handler = NewHandler(tr.registry)
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr.wsHits++
		w.WriteHeader(http.StatusTeapot)
	})
	tr.http = NewRouter(tr.handler, ws, "/ws", NewChiMiddleware(mc)).SetupChi()
	return tr
}

func (tr *testRouter) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tr.http.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthLive(t *testing.T) {
	tr := newTestRouter(t, nil)

	rec := tr.get("/api/v1/health/live")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode(t, rec)
	if !resp.Success {
		t.Error("expected success")
	}
	if resp.Meta == nil || resp.Meta.RequestID == "" {
		t.Error("expected request id in meta")
	}
	if got := rec.Header().Get("X-Request-ID"); got != resp.Meta.RequestID {
		t.Errorf("header request id %q != meta request id %q", got, resp.Meta.RequestID)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on health endpoints")
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]bool
		wantStatus int
	}{
		{"no checks", nil, http.StatusOK},
		{"all passing", map[string]bool{"relay": true, "websocket": true}, http.StatusOK},
		{"one failing", map[string]bool{"relay": false, "websocket": true}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t, nil)
			for name, ok := range tt.checks {
				ok := ok
				tr.handler.AddReadinessCheck(name, func() bool { return ok })
			}

			rec := tr.get("/api/v1/health/ready")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decode(t, rec)
			if tt.wantStatus == http.StatusOK {
				var data struct {
					Ready  bool            `json:"ready"`
					Checks map[string]bool `json:"checks"`
				}
				if err := json.Unmarshal(resp.Data, &data); err != nil {
					t.Fatalf("decode data: %v", err)
				}
				if !data.Ready || len(data.Checks) != len(tt.checks) {
					t.Errorf("data = %+v, want ready with %d checks", data, len(tt.checks))
				}
				return
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != ErrCodeServiceUnavailable {
				t.Errorf("expected %s error, got %+v", ErrCodeServiceUnavailable, resp.Error)
			}
		})
	}
}

func TestHealthReady_FailureLogsRequestContext(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	tr := newTestRouter(t, nil)
	tr.handler.AddReadinessCheck("relay", func() bool { return false })

	rec := tr.get("/api/v1/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	output := buf.String()
	requestID := rec.Header().Get("X-Request-ID")
	for _, want := range []string{
		`"request_id":"` + requestID + `"`,
		`"path":"/api/v1/health/ready"`,
		`"code":"` + ErrCodeServiceUnavailable + `"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in log output: %s", want, output)
		}
	}
}

func TestHealthReady_CheckReplaced(t *testing.T) {
	tr := newTestRouter(t, nil)
	tr.handler.AddReadinessCheck("relay", func() bool { return false })
	tr.handler.AddReadinessCheck("relay", func() bool { return true })

	if rec := tr.get("/api/v1/health/ready"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 after replacing failing check", rec.Code)
	}
}

func TestListRooms(t *testing.T) {
	tr := newTestRouter(t, nil)
	joinAs(t, tr.registry, "lobby", "alice")
	joinAs(t, tr.registry, "lobby", "bob")
	joinAs(t, tr.registry, "general", "carol")

	rec := tr.get("/api/v1/rooms")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var list RoomList
	if err := json.Unmarshal(decode(t, rec).Data, &list); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if list.RoomCount != 2 || list.MemberCount != 3 {
		t.Errorf("counts = %d rooms / %d members, want 2 / 3", list.RoomCount, list.MemberCount)
	}
	want := []room.RoomInfo{{Name: "general", Members: 1}, {Name: "lobby", Members: 2}}
	if len(list.Rooms) != len(want) {
		t.Fatalf("rooms = %+v, want %+v", list.Rooms, want)
	}
	for i := range want {
		if list.Rooms[i] != want[i] {
			t.Errorf("rooms[%d] = %+v, want %+v", i, list.Rooms[i], want[i])
		}
	}
}

func TestListRooms_Empty(t *testing.T) {
	tr := newTestRouter(t, nil)

	var list RoomList
	if err := json.Unmarshal(decode(t, tr.get("/api/v1/rooms")).Data, &list); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if list.RoomCount != 0 || len(list.Rooms) != 0 {
		t.Errorf("expected no rooms, got %+v", list)
	}
}

func TestGetRoom(t *testing.T) {
	tr := newTestRouter(t, nil)
	bob := joinAs(t, tr.registry, "lobby", "bob")
	alice := joinAs(t, tr.registry, "lobby", "alice")
	joinAs(t, tr.registry, "general", "carol")

	rec := tr.get("/api/v1/rooms/lobby")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var detail RoomDetail
	if err := json.Unmarshal(decode(t, rec).Data, &detail); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	want := []MemberInfo{
		{ID: alice.ID(), Nickname: "alice"},
		{ID: bob.ID(), Nickname: "bob"},
	}
	if detail.Name != "lobby" || detail.Count != 2 {
		t.Errorf("detail = %+v, want lobby with 2 members", detail)
	}
	for i := range want {
		if detail.Members[i] != want[i] {
			t.Errorf("members[%d] = %+v, want %+v", i, detail.Members[i], want[i])
		}
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	tr := newTestRouter(t, nil)

	rec := tr.get("/api/v1/rooms/nowhere")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decode(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %+v", resp.Error)
	}
}

func TestGetRoom_LeftMembersGone(t *testing.T) {
	tr := newTestRouter(t, nil)
	h := joinAs(t, tr.registry, "lobby", "alice")
	tr.registry.Leave("lobby", h)

	if rec := tr.get("/api/v1/rooms/lobby"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 once the last member left", rec.Code)
	}
}

func TestGetRoom_InvalidName(t *testing.T) {
	tr := newTestRouter(t, nil)

	tests := []struct {
		name string
		path string
	}{
		{"blank", "/api/v1/rooms/%20%20"},
		{"too long", "/api/v1/rooms/" + strings.Repeat("x", 65)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tr.get(tt.path)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decode(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
				t.Errorf("expected %s, got %+v", ErrCodeValidationFailed, resp.Error)
			}
		})
	}
}

func TestRouter_WebSocketRoute(t *testing.T) {
	tr := newTestRouter(t, nil)

	if rec := tr.get("/ws"); rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want ws handler response", rec.Code)
	}
	if tr.wsHits != 1 {
		t.Errorf("ws handler hits = %d, want 1", tr.wsHits)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	tr := newTestRouter(t, nil)

	rec := tr.get("/does-not-exist")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if resp := decode(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND envelope, got %+v", resp.Error)
	}

	rec = httptest.NewRecorder()
	tr.http.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rooms", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	tr := newTestRouter(t, nil)
	tr.get("/api/v1/health/live")

	rec := tr.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Error("expected api_requests_total in metrics output")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	mc := DefaultChiMiddlewareConfig()
	mc.RateLimitRequests = 2
	mc.RateLimitWindow = time.Minute
	tr := newTestRouter(t, mc)

	for i := 0; i < 2; i++ {
		if rec := tr.get("/api/v1/rooms"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := tr.get("/api/v1/rooms")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if resp := decode(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("expected TOO_MANY_REQUESTS, got %+v", resp.Error)
	}

	// Health probes and the ws limiter are independent of the API limiter.
	if rec := tr.get("/api/v1/health/live"); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
	if rec := tr.get("/ws"); rec.Code != http.StatusTeapot {
		t.Errorf("ws status = %d, want ws handler response", rec.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	mc := DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = []string{"https://chat.example.com"}
	tr := newTestRouter(t, mc)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rooms", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	tr.http.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want allowed origin", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	tr.http.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q for disallowed origin, want empty", got)
	}
}
