// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package dispatch

import (
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/roomcast/roomcast/internal/delivery"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/protocol"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
)

// ErrRateLimited is returned for frames dropped by the flood guard.
var ErrRateLimited = errors.New("rate limited")

// State is a connection's position in the chat state machine.
type State int

const (
	StateConnected State = iota + 1
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session keys owned by the dispatcher.
const (
	stateKey   = "dispatch.state"
	limiterKey = "dispatch.limiter"
)

// Relay forwards a room payload to other server instances. Publish must
// not block on the network.
type Relay interface {
	Publish(room string, payload any)
}

// Config controls dispatcher behaviour.
type Config struct {
	// EchoToSender includes the sender in its own chat broadcasts.
	EchoToSender bool
	// FloodRate is the sustained inbound frame rate per connection.
	// Zero disables the flood guard.
	FloodRate float64
	// FloodBurst is the number of frames allowed above FloodRate.
	FloodBurst int
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		EchoToSender: true,
		FloodRate:    20,
		FloodBurst:   40,
	}
}

// Dispatcher interprets inbound frames and lifecycle events for every
// connection. It is safe for concurrent use by many connections; calls for
// a single connection are expected from one goroutine.
type Dispatcher struct {
	registry *room.Registry
	channel  delivery.Channel
	relay    Relay
	cfg      Config
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannel sets the channel used for notices to a single connection.
func WithChannel(ch delivery.Channel) Option {
	return func(d *Dispatcher) {
		if ch != nil {
			d.channel = ch
		}
	}
}

// WithRelay forwards chat and typing broadcasts to peer instances.
func WithRelay(r Relay) Option {
	return func(d *Dispatcher) {
		d.relay = r
	}
}

// New creates a Dispatcher over reg.
func New(reg *room.Registry, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		channel:  delivery.NewQueueChannel(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the connection's current state. Connections never seen by
// OnConnect are treated as Connected.
func (d *Dispatcher) State(h *session.Handle) State {
	if v, ok := h.Value(stateKey); ok {
		if s, ok := v.(State); ok {
			return s
		}
	}
	return StateConnected
}

func (d *Dispatcher) setState(h *session.Handle, s State) {
	h.SetValue(stateKey, s)
}

// OnConnect registers a freshly handshaken connection.
func (d *Dispatcher) OnConnect(h *session.Handle) {
	d.setState(h, StateConnected)
	if d.cfg.FloodRate > 0 {
		burst := d.cfg.FloodBurst
		if burst < 1 {
			burst = 1
		}
		h.SetValue(limiterKey, rate.NewLimiter(rate.Limit(d.cfg.FloodRate), burst))
	}

	logging.Debug().Str("conn_id", h.ID()).Msg("connection opened")
}

// HandleMessage decodes one raw text frame and dispatches it. Malformed
// frames are reported to the sender and returned as protocol violations;
// the connection stays open.
func (d *Dispatcher) HandleMessage(h *session.Handle, data []byte) error {
	if d.State(h) == StateClosed {
		return nil
	}
	if err := d.admit(h); err != nil {
		return err
	}

	frame, err := protocol.Decode(data)
	if err != nil {
		reason := protocol.ViolationReason(err)
		metrics.RecordFrameReceived("invalid")
		metrics.RecordProtocolViolation(reason)
		logging.Debug().Err(err).Str("conn_id", h.ID()).Msg("dropping malformed frame")
		d.notify(h, protocol.CodeProtocolViolation, err.Error())
		return err
	}
	return d.dispatch(h, frame)
}

// OnFrame dispatches one decoded frame.
func (d *Dispatcher) OnFrame(h *session.Handle, frame protocol.Frame) error {
	if d.State(h) == StateClosed {
		return nil
	}
	if err := d.admit(h); err != nil {
		return err
	}
	return d.dispatch(h, frame)
}

func (d *Dispatcher) dispatch(h *session.Handle, frame protocol.Frame) error {
	if frame == nil {
		metrics.RecordProtocolViolation("nil_frame")
		return fmt.Errorf("%w: nil frame", protocol.ErrProtocolViolation)
	}
	metrics.RecordFrameReceived(frame.Type())

	switch f := frame.(type) {
	case protocol.Join:
		return d.join(h, f)
	case protocol.ChatMessage:
		return d.chat(h, f)
	case protocol.TypingIndicator:
		return d.typing(h, f)
	default:
		metrics.RecordProtocolViolation("unsupported_frame")
		return fmt.Errorf("%w: unsupported frame %T", protocol.ErrProtocolViolation, frame)
	}
}

// admit applies the per-connection flood guard.
func (d *Dispatcher) admit(h *session.Handle) error {
	v, ok := h.Value(limiterKey)
	if !ok {
		return nil
	}
	limiter, ok := v.(*rate.Limiter)
	if !ok || limiter.Allow() {
		return nil
	}

	metrics.RecordFloodDrop()
	logging.Debug().Str("conn_id", h.ID()).Msg("flood guard dropped frame")
	d.notify(h, protocol.CodeRateLimited, "too many messages, slow down")
	return ErrRateLimited
}

func (d *Dispatcher) join(h *session.Handle, f protocol.Join) error {
	h.SetNickname(f.Nick)

	if prev := h.Room(); prev != "" && prev != f.Room {
		d.registry.Leave(prev, h)
		h.ClearRoom()
		d.setState(h, StateConnected)
	}

	if err := h.SetRoom(f.Room); err != nil {
		metrics.RecordInvalidState()
		d.notify(h, protocol.CodeInvalidState, "room name must not be blank")
		return err
	}

	if err := d.registry.Join(f.Room, h); err != nil {
		h.ClearRoom()
		if errors.Is(err, session.ErrClosed) {
			d.setState(h, StateClosed)
			return err
		}
		d.notify(h, protocol.CodeInvalidState, "unable to join room")
		return fmt.Errorf("join %q: %w", f.Room, err)
	}

	d.setState(h, StateJoined)
	log := logging.ForConnection(h.ID(), f.Room)
	log.Info().Str("nick", f.Nick).Msg("user joined room")
	return nil
}

func (d *Dispatcher) chat(h *session.Handle, f protocol.ChatMessage) error {
	roomName := h.Room()
	if d.State(h) != StateJoined || roomName == "" {
		metrics.RecordInvalidState()
		logging.Debug().Str("conn_id", h.ID()).Msg("chat message before join dropped")
		d.notify(h, protocol.CodeInvalidState, "join a room before sending messages")
		return fmt.Errorf("chat before join: %w", session.ErrInvalidState)
	}
	if err := d.checkMembership(h, roomName); err != nil {
		return err
	}

	payload := protocol.NewChat(h.Nickname(), f.Text)

	var res room.BroadcastResult
	if d.cfg.EchoToSender {
		res = d.registry.Broadcast(roomName, payload)
	} else {
		res = d.registry.BroadcastExcept(roomName, payload, h)
	}
	if d.relay != nil {
		d.relay.Publish(roomName, payload)
	}

	logging.Debug().
		Str("conn_id", h.ID()).
		Str("room", roomName).
		Int("attempted", res.Attempted).
		Int("delivered", res.Delivered).
		Msg("chat message broadcast")
	return nil
}

func (d *Dispatcher) typing(h *session.Handle, f protocol.TypingIndicator) error {
	roomName := h.Room()
	if d.State(h) != StateJoined || roomName == "" {
		return fmt.Errorf("typing before join: %w", session.ErrInvalidState)
	}
	if err := d.checkMembership(h, roomName); err != nil {
		return err
	}

	payload := protocol.NewTyping(h.Nickname(), f.IsTyping)
	res := d.registry.BroadcastExcept(roomName, payload, h)
	logging.Trace().
		Str("conn_id", h.ID()).
		Str("room", roomName).
		Bool("is_typing", f.IsTyping).
		Int("delivered", res.Delivered).
		Msg("typing indicator broadcast")
	if d.relay != nil {
		d.relay.Publish(roomName, payload)
	}
	return nil
}

// OnIdleTimeout removes an inactive connection from its room and closes it
// after an idle close notice. The room is not notified.
func (d *Dispatcher) OnIdleTimeout(h *session.Handle) {
	if d.State(h) == StateClosed {
		return
	}
	metrics.RecordIdleTimeout()

	roomName := d.leaveCurrent(h)
	d.setState(h, StateClosed)
	h.CloseWith(protocol.NewIdleCloseNotice())

	log := logging.ForConnection(h.ID(), roomName)
	log.Info().Msg("connection idle, closing")
}

// OnDisconnect removes the connection from its room and closes it. It is a
// no-op for connections that never joined or were already closed.
func (d *Dispatcher) OnDisconnect(h *session.Handle) {
	roomName := d.leaveCurrent(h)
	d.setState(h, StateClosed)
	h.Close()

	logging.Debug().
		Str("conn_id", h.ID()).
		Str("room", roomName).
		Msg("connection closed")
}

func (d *Dispatcher) leaveCurrent(h *session.Handle) string {
	roomName := h.Room()
	if roomName != "" {
		d.registry.Leave(roomName, h)
	}
	return roomName
}

// checkMembership catches handles the registry dropped behind the
// dispatcher's back, after a failed delivery. Such a handle returns to
// Connected and must join again.
func (d *Dispatcher) checkMembership(h *session.Handle, roomName string) error {
	if d.registry.IsMember(roomName, h) {
		return nil
	}

	h.ClearRoom()
	d.setState(h, StateConnected)
	metrics.RecordInvalidState()
	log := logging.ForConnection(h.ID(), roomName)
	log.Info().Msg("connection no longer in room, rejoin required")
	d.notify(h, protocol.CodeInvalidState, "you were removed from the room, join again")
	return fmt.Errorf("not a member of %q: %w", roomName, session.ErrInvalidState)
}

func (d *Dispatcher) notify(h *session.Handle, code, message string) {
	d.channel.SendOne(h, protocol.NewErrorNotice(code, message))
}
