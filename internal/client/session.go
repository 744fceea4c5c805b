// Package client implements the relay's client side: a connection session
// that owns one WebSocket, authenticates at connect time, reconnects with
// capped backoff and re-joins the active room; and a transcript that
// reconciles optimistic local messages against authoritative broadcasts.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/nexuschat/nexus-relay/internal/core"
	"github.com/nexuschat/nexus-relay/internal/proto"
)

// Status describes the session's connection state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusAuthenticated
	StatusJoined
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusAuthenticated:
		return "authenticated"
	case StatusJoined:
		return "joined"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

var (
	// ErrAuthRejected means the server refused the credential token.
	// The session does not retry; the user needs a fresh token.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrRetriesExhausted means reconnection gave up after the configured
	// number of attempts.
	ErrRetriesExhausted = errors.New("reconnect retries exhausted")
	// ErrNotConnected means a send was attempted without a live connection.
	ErrNotConnected = errors.New("not connected")
)

// Options configures a Session.
type Options struct {
	// URL is the relay WebSocket endpoint, e.g. ws://host:8080/ws.
	URL string
	// Token is the credential presented once at connect time.
	Token string

	// ReconnectDelay is the initial backoff; it doubles per failed
	// attempt up to MaxReconnectDelay. MaxRetries caps attempts per
	// outage; 0 means retry forever.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	MaxRetries        int

	Logger *zerolog.Logger

	// OnEvent receives every outbound frame from the server.
	OnEvent func(proto.Outbound)
	// OnStatus receives session state transitions.
	OnStatus func(Status)
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = time.Second
	}
	if o.MaxReconnectDelay <= 0 {
		o.MaxReconnectDelay = 30 * time.Second
	}
	return o
}

// Session owns one logical connection to the relay across any number of
// physical reconnects. Room membership is not preserved by the server over a
// reconnect, so the session re-issues a join for the active room every time
// the transport comes back.
type Session struct {
	opts Options
	log  *zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	status Status
	active *core.RoomKey
}

// NewSession builds a session; call Run to connect.
func NewSession(opts Options) *Session {
	opts = opts.withDefaults()
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{opts: opts, log: logger}
}

// Status reports the current session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run connects and blocks, reading events and reconnecting on drops, until
// ctx is cancelled, authentication is rejected, or retries are exhausted.
func (s *Session) Run(ctx context.Context) error {
	attempts := 0
	reconnecting := false

	for {
		if reconnecting {
			s.setStatus(StatusReconnecting)
		} else {
			s.setStatus(StatusConnecting)
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthRejected) || ctx.Err() != nil {
				s.setStatus(StatusDisconnected)
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			attempts++
			if s.opts.MaxRetries > 0 && attempts >= s.opts.MaxRetries {
				s.setStatus(StatusDisconnected)
				return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, err)
			}

			delay := s.backoff(attempts)
			s.log.Debug().Err(err).Dur("retry_in", delay).Int("attempt", attempts).Msg("dial failed")
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				s.setStatus(StatusDisconnected)
				return nil
			}
		}

		attempts = 0
		s.attach(ctx, conn)
		s.setStatus(StatusAuthenticated)

		// Membership does not survive the transport; rejoin whatever
		// room the application considers active.
		if key := s.activeRoom(); key != nil {
			if err := s.sendJoin(*key); err != nil {
				s.log.Warn().Err(err).Msg("rejoin after connect")
			}
		}

		err = s.readFrames(ctx, conn)
		s.detach(conn)
		conn.Close(websocket.StatusNormalClosure, "closing")

		if ctx.Err() != nil {
			s.setStatus(StatusDisconnected)
			return nil
		}
		s.log.Debug().Err(err).Msg("connection lost")
		reconnecting = true
	}
}

// JoinRoom makes key the active room. Any previous room is left implicitly
// by the server as part of the join, so the switch is one transition.
func (s *Session) JoinRoom(key core.RoomKey) error {
	s.mu.Lock()
	s.active = &key
	s.mu.Unlock()
	return s.sendJoin(key)
}

// LeaveRoom leaves the active room.
func (s *Session) LeaveRoom() error {
	s.mu.Lock()
	key := s.active
	s.active = nil
	s.mu.Unlock()

	if key == nil {
		return nil
	}
	return s.write(proto.InboundTypeLeaveRoom, proto.RoomRef{GroupID: key.GroupID, ChatID: key.ChatID})
}

// SendMessage relays a message; ref is the correlation token echoed back on
// the authoritative broadcast.
func (s *Session) SendMessage(key core.RoomKey, content, ref string, replyTo *int64, disableAI bool) error {
	return s.write(proto.InboundTypeSendMessage, proto.SendData{
		RoomRef:   proto.RoomRef{GroupID: key.GroupID, ChatID: key.ChatID},
		Content:   content,
		ReplyTo:   replyTo,
		Ref:       ref,
		DisableAI: disableAI,
	})
}

// EditMessage replaces the content of a confirmed message.
func (s *Session) EditMessage(key core.RoomKey, id int64, content string) error {
	return s.write(proto.InboundTypeEditMessage, proto.EditData{
		RoomRef: proto.RoomRef{GroupID: key.GroupID, ChatID: key.ChatID},
		ID:      id,
		Content: content,
	})
}

// DeleteMessage removes a confirmed message.
func (s *Session) DeleteMessage(key core.RoomKey, id int64) error {
	return s.write(proto.InboundTypeDeleteMessage, proto.DeleteData{
		RoomRef: proto.RoomRef{GroupID: key.GroupID, ChatID: key.ChatID},
		ID:      id,
	})
}

// StartTyping marks the local user as typing in the room.
func (s *Session) StartTyping(key core.RoomKey) error {
	return s.write(proto.InboundTypeTypingStart, proto.RoomRef{GroupID: key.GroupID, ChatID: key.ChatID})
}

// StopTyping clears the local user's typing state.
func (s *Session) StopTyping(key core.RoomKey) error {
	return s.write(proto.InboundTypeTypingStop, proto.RoomRef{GroupID: key.GroupID, ChatID: key.ChatID})
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, s.opts.URL+"?token="+s.opts.Token, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrAuthRejected
		}
		return nil, err
	}
	return conn, nil
}

func (s *Session) readFrames(ctx context.Context, conn *websocket.Conn) error {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return err
		}

		if outbound.Event == proto.EventRoomJoined {
			s.setStatus(StatusJoined)
		}
		if s.opts.OnEvent != nil {
			s.opts.OnEvent(outbound)
		}
	}
}

func (s *Session) sendJoin(key core.RoomKey) error {
	return s.write(proto.InboundTypeJoinRoom, proto.RoomRef{GroupID: key.GroupID, ChatID: key.ChatID})
}

func (s *Session) write(frameType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", frameType, err)
	}

	s.mu.Lock()
	conn := s.conn
	ctx := s.ctx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
		return fmt.Errorf("write %s: %w", frameType, err)
	}
	return nil
}

func (s *Session) attach(ctx context.Context, conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.ctx = ctx
	s.mu.Unlock()
}

func (s *Session) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.ctx = nil
	}
	s.mu.Unlock()
}

func (s *Session) activeRoom() *core.RoomKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	key := *s.active
	return &key
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()

	if changed && s.opts.OnStatus != nil {
		s.opts.OnStatus(status)
	}
}

func (s *Session) backoff(attempt int) time.Duration {
	delay := s.opts.ReconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.opts.MaxReconnectDelay {
			return s.opts.MaxReconnectDelay
		}
	}
	if delay > s.opts.MaxReconnectDelay {
		delay = s.opts.MaxReconnectDelay
	}
	return delay
}
