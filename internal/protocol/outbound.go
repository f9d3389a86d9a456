// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"github.com/goccy/go-json"
)

// Error notice codes.
const (
	CodeProtocolViolation = "protocol_violation"
	CodeInvalidState      = "invalid_state"
	CodeRateLimited       = "rate_limited"
)

// CloseReasonIdle is sent before closing an inactive connection.
const CloseReasonIdle = "idle_timeout"

// Chat is a chat message delivered to room members.
type Chat struct {
	Type     string `json:"type"`
	Msg      string `json:"msg"`
	SendUser string `json:"sendUser"`
}

// NewChat builds the room payload for a chat message.
func NewChat(sender, text string) Chat {
	return Chat{Type: TypeMsg, Msg: text, SendUser: sender}
}

// Typing is a typing indicator delivered to the other room members.
type Typing struct {
	Type     string `json:"type"`
	SendUser string `json:"sendUser"`
	IsTyping bool   `json:"isTyping"`
}

// NewTyping builds the room payload for a typing indicator.
func NewTyping(sender string, isTyping bool) Typing {
	return Typing{Type: TypeTyping, SendUser: sender, IsTyping: isTyping}
}

// ErrorNotice is sent to a single connection whose frame was dropped.
type ErrorNotice struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorNotice builds an error notice.
func NewErrorNotice(code, message string) ErrorNotice {
	return ErrorNotice{Type: TypeError, Code: code, Message: message}
}

// CloseNotice is the last payload written before the server closes a
// connection.
type CloseNotice struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// NewIdleCloseNotice builds the notice sent on idle timeout.
func NewIdleCloseNotice() CloseNotice {
	return CloseNotice{Type: TypeClose, Reason: CloseReasonIdle}
}

// Encode serialises an outbound payload. Raw JSON (json.RawMessage or
// []byte) is passed through unchanged.
func Encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}
