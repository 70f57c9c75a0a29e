package runtime

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"chat-service/mocks"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeConn is an in-memory websocket connection. Frames pushed on inbound are
// read by the session, text frames written by the session are recorded.
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
	gate    chan struct{}

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.inbound:
		return websocket.TextMessage, frame, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-c.closed:
			return websocket.ErrCloseSent
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) SetReadLimit(int64)               {}
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(frame string) {
	c.inbound <- []byte(frame)
}

func (c *fakeConn) writtenFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type sessionFixture struct {
	session  *Session
	conn     *fakeConn
	registry *Registry
	done     chan struct{}
}

func startSession(t *testing.T, bridge *mocks.MockIPersistenceBridge, config SessionConfig) sessionFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	conn := newFakeConn()
	session := NewSession(uuid.New(), uuid.New(), conn, registry, NewDispatcher(registry, log), bridge, config, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run()
	}()
	require.Eventually(t, func() bool { return session.State() == Active }, time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return sessionFixture{session: session, conn: conn, registry: registry, done: done}
}

func messageFrame(content string) string {
	data, _ := json.Marshal(chat.MessagePayload{Content: content})
	frame, _ := json.Marshal(chat.Envelope{Event: chat.EventMessage, Data: data})
	return string(frame)
}

func TestSession_Message_Is_Submitted_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockIPersistenceBridge(ctrl)
	submitted := make(chan chat.PostMessageCommand, 1)
	bridge.EXPECT().Submit(gomock.Any()).Do(func(cmd chat.PostMessageCommand) {
		submitted <- cmd
	}).Times(1)

	f := startSession(t, bridge, SessionConfig{})

	// When the client sends a message event
	f.conn.send(messageFrame("hello"))

	// Then it is handed to storage with the session identity
	select {
	case cmd := <-submitted:
		req.Equal(chat.PostMessageCommand{ChatID: f.session.Room(), AuthorID: f.session.UserID(), Content: "hello"}, cmd)
	case <-time.After(time.Second):
		req.Fail("message was not submitted")
	}
}

func TestSession_Drops_Invalid_Frames_And_Stays_Open(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockIPersistenceBridge(ctrl)
	submitted := make(chan chat.PostMessageCommand, 1)
	bridge.EXPECT().Submit(gomock.Any()).Do(func(cmd chat.PostMessageCommand) {
		submitted <- cmd
	}).Times(1)

	f := startSession(t, bridge, SessionConfig{MaxContentLength: 10})

	// Given frames that must all be ignored
	f.conn.send("not json")
	f.conn.send(`{"data":{"content":"no event"}}`)
	f.conn.send(`{"event":"typing","data":{}}`)
	f.conn.send(`{"event":"message","data":"not an object"}`)
	f.conn.send(messageFrame(""))
	f.conn.send(messageFrame("   "))
	f.conn.send(messageFrame(strings.Repeat("x", 11)))

	// When a valid frame follows
	f.conn.send(messageFrame("still here"))

	// Then only the valid one is accepted and the session is still active
	select {
	case cmd := <-submitted:
		req.Equal("still here", cmd.Content)
	case <-time.After(time.Second):
		req.Fail("valid message was not submitted")
	}
	req.Equal(Active, f.session.State())
}

func TestSession_Deliver_Writes_To_Connection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := startSession(t, mocks.NewMockIPersistenceBridge(ctrl), SessionConfig{})

	// When a peer frame is delivered
	req.True(f.session.Deliver([]byte(`{"event":"message"}`)))

	// Then the writer pushes it to the client
	req.Eventually(func() bool { return len(f.conn.writtenFrames()) == 1 }, time.Second, 5*time.Millisecond)
	req.Equal([]byte(`{"event":"message"}`), f.conn.writtenFrames()[0])
}

func TestSession_Slow_Consumer_Is_Disconnected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	conn := newFakeConn()
	conn.gate = make(chan struct{})
	session := NewSession(uuid.New(), uuid.New(), conn, registry, NewDispatcher(registry, log),
		mocks.NewMockIPersistenceBridge(ctrl), SessionConfig{BufferSize: 1}, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run()
	}()
	req.Eventually(func() bool { return session.State() == Active }, time.Second, 5*time.Millisecond)

	// Given a client that never finishes reading
	// When frames keep coming
	rejected := false
	for i := 0; i < 10 && !rejected; i++ {
		rejected = !session.Deliver([]byte("frame"))
	}

	// Then the session is closed and leaves the registry
	req.True(rejected)
	req.NotEqual(Active, session.State())
	req.Zero(registry.Count(session.Room()))
	req.False(session.Deliver([]byte("late")))

	close(conn.gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("session did not terminate")
	}
	req.Equal(Closed, session.State())
}

func TestSession_Client_Close_Leaves_Registry(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := startSession(t, mocks.NewMockIPersistenceBridge(ctrl), SessionConfig{})
	req.Equal(1, f.registry.Count(f.session.Room()))

	// When the client goes away
	_ = f.conn.Close()

	// Then the session ends Closed and the room entry is gone
	select {
	case <-f.done:
	case <-time.After(time.Second):
		req.Fail("session did not terminate")
	}
	req.Equal(Closed, f.session.State())
	req.Zero(f.registry.Rooms())
}

func TestSession_Broadcast_Reaches_Peer_Not_Sender(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	bridge := mocks.NewMockIPersistenceBridge(ctrl)
	bridge.EXPECT().Submit(gomock.Any()).Times(1)

	registry := NewRegistry()
	dispatcher := NewDispatcher(registry, log)
	room := uuid.New()
	senderConn, peerConn := newFakeConn(), newFakeConn()
	sender := NewSession(room, uuid.New(), senderConn, registry, dispatcher, bridge, SessionConfig{}, log)
	peer := NewSession(room, uuid.New(), peerConn, registry, dispatcher, bridge, SessionConfig{}, log)

	var wg sync.WaitGroup
	for _, s := range []*Session{sender, peer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run()
		}()
	}
	t.Cleanup(func() {
		_ = senderConn.Close()
		_ = peerConn.Close()
		wg.Wait()
	})
	req.Eventually(func() bool { return registry.Count(room) == 2 }, time.Second, 5*time.Millisecond)

	// When the sender posts a message
	senderConn.send(messageFrame("hi peer"))

	// Then the peer receives the broadcast frame and the sender does not
	req.Eventually(func() bool { return len(peerConn.writtenFrames()) == 1 }, time.Second, 5*time.Millisecond)
	var envelope chat.Envelope
	req.NoError(json.Unmarshal(peerConn.writtenFrames()[0], &envelope))
	var payload chat.BroadcastPayload
	req.NoError(json.Unmarshal(envelope.Data, &payload))
	req.Equal(chat.BroadcastPayload{Chat: room, User: sender.UserID(), Content: "hi peer"}, payload)
	req.Empty(senderConn.writtenFrames())
}

func TestSession_Accepts_Frames_As_Soon_As_Listed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := mocks.NewMockIRegistry(ctrl)
	conn := newFakeConn()

	// Given a peer that broadcasts the moment the session joins its room
	accepted := make(chan bool, 1)
	registry.EXPECT().Join(gomock.Any(), gomock.Any()).Do(func(_ uuid.UUID, sink contract.SessionSink) {
		accepted <- sink.Deliver([]byte(`{"event":"message"}`))
	})
	registry.EXPECT().Leave(gomock.Any(), gomock.Any()).AnyTimes()

	session := NewSession(uuid.New(), uuid.New(), conn, registry, NewDispatcher(registry, log),
		mocks.NewMockIPersistenceBridge(ctrl), SessionConfig{}, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run()
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})

	// Then the frame is queued and written
	req.True(<-accepted)
	req.Eventually(func() bool { return len(conn.writtenFrames()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSessionState_String(t *testing.T) {
	req := require.New(t)
	req.Equal("connecting", Connecting.String())
	req.Equal("active", Active.String())
	req.Equal("closing", Closing.String())
	req.Equal("closed", Closed.String())
}
