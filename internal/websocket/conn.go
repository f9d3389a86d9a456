// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/protocol"
)

// Conn adapts a gorilla connection to session.Transport. WriteMessage is
// called only from the handle's writer goroutine; ping and Close use
// WriteControl, which gorilla allows concurrently with other writes.
type Conn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, writeWait time.Duration) *Conn {
	return &Conn{ws: ws, writeWait: writeWait}
}

// WriteMessage encodes payload as JSON and writes it as one text frame.
func (c *Conn) WriteMessage(payload any) error {
	data, err := protocol.Encode(payload)
	if err != nil {
		metrics.RecordWSError("encode")
		return fmt.Errorf("encode payload: %w", err)
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.RecordWSError("write")
		return err
	}

	metrics.RecordMessageSent()
	return nil
}

// maxCloseFrameWait bounds the normal-closure frame. A peer that stopped
// reading keeps the write lock busy; the socket is closed regardless.
const maxCloseFrameWait = time.Second

// Close sends a best-effort normal-closure frame and closes the socket.
// Closing the socket unblocks any in-flight write or read.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		wait := min(c.writeWait, maxCloseFrameWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
