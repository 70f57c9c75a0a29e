package test

import (
	"bytes"
	"chat-service/contract"
	"chat-service/domain/chat"
	"chat-service/infrastructure/api"
	"chat-service/infrastructure/grpc/client"
	"chat-service/infrastructure/grpc/identity"
	"chat-service/infrastructure/grpc/server"
	"chat-service/infrastructure/storage"
	"chat-service/runtime"
	"chat-service/runtime/workers"
	"chat-service/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type stack struct {
	server   *httptest.Server
	registry *runtime.Registry
	ws       *api.WSHandler
	bridge   *runtime.PersistenceBridge
	messages *services.MessageService
	alice    storage.User
	bob      storage.User
}

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	// Reduced to 16 Mo for testing
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	return db
}

// startIdentity seeds two users and serves them over an in-memory listener.
func startIdentity(t *testing.T, log *slog.Logger) (*grpc.ClientConn, storage.User, storage.User) {
	t.Helper()
	db := openDB(t)
	users := storage.NewUserRepository(db)
	alice, err := users.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := users.CreateUser("bob", "bob@example.com")
	require.NoError(t, err)

	listener := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
	identity.RegisterUserServiceServer(s, server.NewUserServer(users, log))
	go func() { _ = s.Serve(listener) }()

	conn, err := client.Dial("passthrough:///identity",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		s.Stop()
		_ = db.Close()
	})
	return conn, alice, bob
}

// startStack wires the whole chat service. wrap lets a test intercept the
// writes of live connections.
func startStack(t *testing.T, wrap func(contract.IMessageWriter) contract.IMessageWriter) *stack {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conn, alice, bob := startIdentity(t, log)

	db := openDB(t)
	chatRepository := storage.NewChatRepository(db, log)
	messageRepository := storage.NewMessageRepository(db, log)
	verifier := services.NewVerifier(client.NewUserClient(conn, log), time.Second, log)
	chatService := services.NewChatService(chatRepository, verifier, log)
	messageService := services.NewMessageService(messageRepository, chatRepository, 0, log)

	var writer contract.IMessageWriter = messageService
	if wrap != nil {
		writer = wrap(messageService)
	}
	bridge := runtime.NewPersistenceBridge(log, writer, workers.NewSupervisor(log, 50*time.Millisecond),
		runtime.PersistenceConfig{QueueSize: 16, Workers: 1, Timeout: 5 * time.Second, MaxAttempts: 2})
	bridge.Start(context.Background())

	registry := runtime.NewRegistry()
	ws := api.NewWSHandler(registry, runtime.NewDispatcher(registry, log), bridge, runtime.SessionConfig{}, log)
	router := api.NewRouter(api.NewChatHandler(chatService, log), api.NewMessageHandler(messageService, log), ws, nil, log)
	srv := httptest.NewServer(router)

	s := &stack{server: srv, registry: registry, ws: ws, bridge: bridge, messages: messageService, alice: alice, bob: bob}
	t.Cleanup(func() {
		s.shutdown()
		_ = db.Close()
	})
	return s
}

// shutdown follows the order of the production binary. It is safe to call twice.
func (s *stack) shutdown() {
	s.server.Close()
	s.registry.CloseAll()
	s.ws.Wait()
	s.bridge.Stop()
}

func (s *stack) post(t *testing.T, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return res, readBody(t, res)
}

func (s *stack) get(t *testing.T, path string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	res, err := http.Get(s.server.URL + path)
	require.NoError(t, err)
	return res, readBody(t, res)
}

func readBody(t *testing.T, res *http.Response) map[string]json.RawMessage {
	t.Helper()
	defer func() { _ = res.Body.Close() }()
	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

// history lists the stored messages of a chat, or nothing on any failure.
func (s *stack) history(chatID uuid.UUID) []api.MessageView {
	res, err := http.Get(s.server.URL + "/api/messages/chat/" + chatID.String())
	if err != nil {
		return nil
	}
	defer func() { _ = res.Body.Close() }()
	var body struct {
		Data []api.MessageView `json:"data"`
	}
	if json.NewDecoder(res.Body).Decode(&body) != nil {
		return nil
	}
	return body.Data
}

func (s *stack) connect(t *testing.T, chatID, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws%s/ws/messages/chat_uid/%s/user_uid/%s",
		strings.TrimPrefix(s.server.URL, "http"), chatID, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *stack) createChat(t *testing.T, participants ...uuid.UUID) uuid.UUID {
	t.Helper()
	res, body := s.post(t, "/api/chats", map[string]any{"participants": participants})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created api.ChatView
	require.NoError(t, json.Unmarshal(body["data"], &created))
	return created.ID
}

func sendMessage(t *testing.T, conn *websocket.Conn, content string) {
	t.Helper()
	data, err := json.Marshal(chat.MessagePayload{Content: content})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(chat.Envelope{Event: chat.EventMessage, Data: data}))
}

func receiveBroadcast(t *testing.T, conn *websocket.Conn) chat.BroadcastPayload {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope chat.Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	require.Equal(t, chat.EventMessage, envelope.Event)
	var payload chat.BroadcastPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	return payload
}

func Test_Scenario(t *testing.T) {
	req := require.New(t)
	s := startStack(t, nil)

	// 1. Alice opens a chat with Bob
	chatID := s.createChat(t, s.alice.ID, s.bob.ID)

	_, body := s.get(t, "/api/chats/"+chatID.String()+"/participants")
	var participants []uuid.UUID
	req.NoError(json.Unmarshal(body["data"], &participants))
	req.Equal([]uuid.UUID{s.alice.ID, s.bob.ID}, participants)

	// 2. Both connect to the chat
	aliceConn := s.connect(t, chatID, s.alice.ID)
	bobConn := s.connect(t, chatID, s.bob.ID)
	req.Eventually(func() bool { return s.registry.Count(chatID) == 2 }, 2*time.Second, 10*time.Millisecond)

	// 3. Alice talks, Bob hears
	sendMessage(t, aliceConn, "hello bob")
	payload := receiveBroadcast(t, bobConn)
	req.Equal(chat.BroadcastPayload{Chat: chatID, User: s.alice.ID, Content: "hello bob"}, payload)

	// 4. Invalid frames are ignored and the connection stays usable
	req.NoError(bobConn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendMessage(t, bobConn, "   ")
	sendMessage(t, bobConn, "hi alice")
	payload = receiveBroadcast(t, aliceConn)
	req.Equal("hi alice", payload.Content)

	// 5. The history holds both messages, oldest first
	var history []api.MessageView
	req.Eventually(func() bool {
		history = s.history(chatID)
		return len(history) == 2
	}, 2*time.Second, 20*time.Millisecond)
	req.Equal("hello bob", history[0].Content)
	req.Equal(s.alice.ID, history[0].UserID)
	req.Equal("hi alice", history[1].Content)
}

func Test_Chat_With_Unknown_User_Is_Not_Created(t *testing.T) {
	req := require.New(t)
	s := startStack(t, nil)
	unknown := uuid.New()

	// When one of three participants does not exist
	res, body := s.post(t, "/api/chats", map[string]any{
		"participants": []uuid.UUID{s.alice.ID, unknown, s.bob.ID},
	})

	// Then the creation is rejected with the culprit named
	req.Equal(http.StatusNotFound, res.StatusCode)
	var failures []struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	req.NoError(json.Unmarshal(body["failures"], &failures))
	req.Len(failures, 1)
	req.Equal(unknown.String(), failures[0].UserID)
	req.Equal("not_found", failures[0].Reason)

	// And no chat was written for the valid participants
	_, body = s.get(t, "/api/chats/user/"+s.alice.ID.String())
	req.JSONEq(`[]`, string(body["data"]))

	// When the same user is listed twice
	res, _ = s.post(t, "/api/chats", map[string]any{"participants": []uuid.UUID{s.alice.ID, s.alice.ID}})

	// Then it is a client error
	req.Equal(http.StatusBadRequest, res.StatusCode)
}

// gatedWriter holds every write until released.
type gatedWriter struct {
	next    contract.IMessageWriter
	release chan struct{}
}

func (w *gatedWriter) CreateMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	<-w.release
	return w.next.CreateMessage(ctx, cmd)
}

func Test_Message_Survives_Disconnect(t *testing.T) {
	req := require.New(t)
	gate := &gatedWriter{release: make(chan struct{})}
	s := startStack(t, func(next contract.IMessageWriter) contract.IMessageWriter {
		gate.next = next
		return gate
	})
	chatID := s.createChat(t, s.alice.ID, s.bob.ID)

	aliceConn := s.connect(t, chatID, s.alice.ID)
	bobConn := s.connect(t, chatID, s.bob.ID)
	req.Eventually(func() bool { return s.registry.Count(chatID) == 2 }, 2*time.Second, 10*time.Millisecond)

	// Given a message accepted while the store is slow
	sendMessage(t, aliceConn, "last words")
	req.Equal("last words", receiveBroadcast(t, bobConn).Content)

	// When Alice disconnects before it is written
	req.NoError(aliceConn.Close())
	req.Eventually(func() bool { return s.registry.Count(chatID) == 1 }, 2*time.Second, 10*time.Millisecond)
	messages, err := s.messages.ListMessages(context.Background(), chatID)
	req.NoError(err)
	req.Empty(messages)

	// Then the write still completes
	close(gate.release)
	s.shutdown()
	messages, err = s.messages.ListMessages(context.Background(), chatID)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(s.alice.ID, messages[0].AuthorID)
}
