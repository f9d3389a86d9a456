// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	t.Parallel()

	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	if len(id1) != 36 {
		t.Errorf("expected 36-character request ID, got %d", len(id1))
	}
	if id1 == id2 {
		t.Error("expected unique request IDs")
	}
}

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" {
		t.Error("expected empty request ID")
	}
	if ConnIDFromContext(ctx) != "" {
		t.Error("expected empty conn ID")
	}

	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithConnID(ctx, "conn-1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext = %q, want req-1", got)
	}
	if got := ConnIDFromContext(ctx); got != "conn-1" {
		t.Errorf("ConnIDFromContext = %q, want conn-1", got)
	}
}

func TestCtx_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-42")
	ctx = ContextWithConnID(ctx, "conn-7")

	Ctx(ctx).Info().Msg("upgraded")

	output := buf.String()
	for _, want := range []string{`"request_id":"req-42"`, `"conn_id":"conn-7"`, "upgraded"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestLoggerFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	l := LoggerFromContext(context.Background())
	l.Info().Msg("global")

	if !strings.Contains(buf.String(), "global") {
		t.Errorf("expected fallback to global logger, got: %s", buf.String())
	}
}
