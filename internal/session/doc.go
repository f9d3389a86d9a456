// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package session provides the per-connection handle used by every layer of
the fanout core.

A Handle wraps one live transport connection. It owns the connection's
identity, its room assignment, a nickname, a session-scoped key/value store
and an ordered asynchronous send queue.

# Sending

Send never blocks on network I/O. Payloads are appended to a bounded FIFO
queue drained by a single writer goroutine, so concurrent callers never
interleave frames and each connection observes payloads in Send order:

	f := h.Send(protocol.NewChat("alice", "hi"))
	if err := f.Wait(ctx); err != nil {
	    // ErrQueueFull, ErrClosed or the transport's write error
	}

Every Future completes exactly once.

# Closing

Three ways to end a connection:

  - Close: stop accepting sends, cancel queued ones, tear down now.
  - CloseWith: write everything already queued, then a final payload,
    then tear down. The returned Future reports the final write.
  - Drain: write everything already queued, then tear down; force
    teardown when the context expires first.

Close hooks registered with OnClose run exactly once after teardown. The
room registry relies on them so that a closed connection can never remain a
room member.

# Thread Safety

All methods are safe for concurrent use.
*/
package session
