// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/validation"
)

// Frame type tags.
const (
	TypeInit   = "init"
	TypeJoin   = "join"
	TypeMsg    = "msg"
	TypeTyping = "typing"
	TypeError  = "error"
	TypeClose  = "close"
)

// Field limits enforced on inbound frames.
const (
	MaxRoomLength    = 64
	MaxNickLength    = 64
	MaxMessageLength = 4096
)

// ErrProtocolViolation is wrapped by every decoding failure.
var ErrProtocolViolation = errors.New("protocol violation")

// Violation reasons.
const (
	ReasonInvalidJSON  = "invalid_json"
	ReasonMissingType  = "missing_type"
	ReasonUnknownType  = "unknown_type"
	ReasonInvalidField = "invalid_field"
)

// DecodeError describes why a frame was rejected.
type DecodeError struct {
	Reason string
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return "protocol violation: " + e.Reason
	}
	return "protocol violation: " + e.Reason + ": " + e.Detail
}

// Unwrap makes errors.Is(err, ErrProtocolViolation) hold.
func (e *DecodeError) Unwrap() error {
	return ErrProtocolViolation
}

// Frame is one decoded inbound frame: Join, ChatMessage or TypingIndicator.
type Frame interface {
	// Type returns the canonical type tag used in logs and metrics.
	Type() string
}

// Join asks to enter a room under a display name.
type Join struct {
	Room string `json:"room" validate:"required,notblank,max=64"`
	Nick string `json:"nick" validate:"required,notblank,max=64"`
}

// Type implements Frame.
func (Join) Type() string { return TypeJoin }

// ChatMessage is a text message for the sender's current room.
type ChatMessage struct {
	Text string `json:"msg" validate:"required,max=4096"`
}

// Type implements Frame.
func (ChatMessage) Type() string { return TypeMsg }

// TypingIndicator reports whether the sender is typing.
type TypingIndicator struct {
	IsTyping bool `json:"isTyping"`
}

// Type implements Frame.
func (TypingIndicator) Type() string { return TypeTyping }

// envelope is the union of every inbound field.
type envelope struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	Nick     string `json:"nick"`
	Name     string `json:"name"`
	Msg      string `json:"msg"`
	IsTyping bool   `json:"isTyping"`
}

// Decode parses one text frame.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidJSON, Detail: err.Error()}
	}

	var frame Frame
	switch strings.ToLower(strings.TrimSpace(env.Type)) {
	case "":
		return nil, &DecodeError{Reason: ReasonMissingType}
	case TypeInit, TypeJoin:
		nick := env.Nick
		if nick == "" {
			nick = env.Name
		}
		frame = Join{Room: strings.TrimSpace(env.Room), Nick: strings.TrimSpace(nick)}
	case TypeMsg:
		frame = ChatMessage{Text: env.Msg}
	case TypeTyping:
		frame = TypingIndicator{IsTyping: env.IsTyping}
	default:
		return nil, &DecodeError{Reason: ReasonUnknownType, Detail: fmt.Sprintf("%q", env.Type)}
	}

	if verr := validation.ValidateStruct(frame); verr != nil {
		return nil, &DecodeError{Reason: ReasonInvalidField, Detail: verr.Error()}
	}
	return frame, nil
}

// ViolationReason extracts the reason from a decode error, or "" when err
// is not one.
func ViolationReason(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
