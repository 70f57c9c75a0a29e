package runtime

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type SessionState int32

const (
	Connecting SessionState = iota
	Active
	Closing
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the subset of *websocket.Conn a session relies on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type SessionConfig struct {
	BufferSize       int
	PongWait         time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
	MaxContentLength int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.BufferSize < 1 {
		c.BufferSize = 256
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = chat.DefaultMaxContentLength
	}
	return c
}

func (c SessionConfig) pingInterval() time.Duration {
	return c.PongWait * 9 / 10
}

var _ contract.SessionSink = (*Session)(nil)

// Session is one live connection bound to a single (room, user) pair.
//
// It owns two goroutines: the read loop, which runs on the caller of Run, and
// the write loop, the only writer of the connection. Peers never touch the
// connection, they push frames through Deliver.
type Session struct {
	id         string
	room       uuid.UUID
	user       uuid.UUID
	conn       Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	state      atomic.Int32
	registry   contract.IRegistry
	dispatcher contract.IDispatcher
	bridge     contract.IPersistenceBridge
	config     SessionConfig
	log        *slog.Logger
}

func NewSession(room, user uuid.UUID, conn Conn,
	registry contract.IRegistry, dispatcher contract.IDispatcher, bridge contract.IPersistenceBridge,
	config SessionConfig, log *slog.Logger) *Session {
	id := uuid.NewString()
	config = config.withDefaults()
	return &Session{
		id:         id,
		room:       room,
		user:       user,
		conn:       conn,
		send:       make(chan []byte, config.BufferSize),
		done:       make(chan struct{}),
		registry:   registry,
		dispatcher: dispatcher,
		bridge:     bridge,
		config:     config,
		log:        log.With("session_id", id, "chat_id", room, "user_id", user),
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) UserID() uuid.UUID   { return s.user }
func (s *Session) Room() uuid.UUID     { return s.room }
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Run registers the session, then processes inbound frames until the client
// closes or the transport fails. It returns once the session is Closed.
func (s *Session) Run() {
	// Active before Join: a peer may broadcast as soon as the session is listed.
	s.state.Store(int32(Active))
	s.registry.Join(s.room, s)
	s.log.Info("User joined chat")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	s.readPump()
	s.Close()
	<-writerDone
	_ = s.conn.Close()

	s.state.Store(int32(Closed))
	s.log.Info("User left chat")
}

// Deliver queues a frame for the client without blocking.
// A full queue means the client does not keep up: the session is closed.
func (s *Session) Deliver(frame []byte) bool {
	if s.State() != Active {
		return false
	}
	select {
	case <-s.done:
		return false
	case s.send <- frame:
		return true
	default:
		s.log.Warn("Outbound queue full, closing slow session", "capacity", cap(s.send))
		s.Close()
		return false
	}
}

// Close moves the session to Closing and removes it from its room.
// No frame is read or written afterwards. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closing))
		s.registry.Leave(s.room, s)
		close(s.done)
	})
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(s.config.MaxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(s.config.PongWait)); err != nil {
		s.log.Warn("Error setting read deadline", "error", err)
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	})

	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}
		if s.State() != Active {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleFrame(raw)
	}
}

func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.log.Warn("Frame exceeded maximum size", "limit", s.config.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.log.Debug("Client closed the connection", "error", err)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.log.Warn("Unexpected close", "error", err)
	default:
		s.log.Debug("Connection read ended", "error", err)
	}
}

// handleFrame interprets one inbound text frame. Anything malformed is logged
// and dropped, the connection stays open.
func (s *Session) handleFrame(raw []byte) {
	var envelope chat.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.log.Warn("Discarding malformed frame", "error", err)
		return
	}

	switch envelope.Event {
	case chat.EventMessage:
		var payload chat.MessagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			s.log.Warn("Discarding malformed message event", "error", err)
			return
		}
		if payload.Content == "" {
			return
		}
		if err := chat.ValidateContent(payload.Content, s.config.MaxContentLength); err != nil {
			s.log.Warn("Discarding invalid message", "error", err)
			return
		}
		s.accept(chat.PostMessageCommand{ChatID: s.room, AuthorID: s.user, Content: payload.Content})
	case "":
		s.log.Warn("Discarding frame without event")
	default:
		s.log.Debug("Ignoring event", "event", envelope.Event)
	}
}

// accept hands the message to storage and to the peers. Neither waits for the other.
func (s *Session) accept(cmd chat.PostMessageCommand) {
	s.bridge.Submit(cmd)
	delivered := s.dispatcher.Broadcast(s, cmd)
	s.log.Debug("Message broadcast", "peers", delivered)
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.config.pingInterval())
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-s.send:
			if s.State() != Active {
				continue
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait)); err != nil {
				s.log.Warn("Error setting write deadline", "error", err)
				s.Close()
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Warn("Failed to push frame to client", "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait)); err != nil {
				s.Close()
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug("Ping failed", "error", err)
				s.Close()
				return
			}
		}
	}
}
