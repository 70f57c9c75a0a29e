package api

import (
	"chat-service/contract"
	"chat-service/runtime"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades realtime connections and runs one session per connection.
type WSHandler struct {
	registry   contract.IRegistry
	dispatcher contract.IDispatcher
	bridge     contract.IPersistenceBridge
	config     runtime.SessionConfig
	upgrader   websocket.Upgrader
	sessions   sync.WaitGroup
	fail       func(w http.ResponseWriter, r *http.Request, err error)
	log        *slog.Logger
}

func NewWSHandler(registry contract.IRegistry, dispatcher contract.IDispatcher,
	bridge contract.IPersistenceBridge, config runtime.SessionConfig, log *slog.Logger) *WSHandler {
	return &WSHandler{
		registry:   registry,
		dispatcher: dispatcher,
		bridge:     bridge,
		config:     config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		fail: respondError(log),
		log:  log,
	}
}

// Connect handles GET /ws/messages/chat_uid/{chat_uid}/user_uid/{user_uid}.
// Both identifiers must be UUIDs, otherwise the upgrade is refused with 400.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chatID, err := parseID(vars["chat_uid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := parseID(vars["user_uid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied to the client.
		h.log.Warn("Websocket upgrade failed", "chat_id", chatID, "user_id", userID, "error", err)
		return
	}

	session := runtime.NewSession(chatID, userID, conn, h.registry, h.dispatcher, h.bridge, h.config, h.log)
	h.sessions.Add(1)
	go func() {
		defer h.sessions.Done()
		session.Run()
	}()
}

// Wait blocks until every session started by the handler is closed.
func (h *WSHandler) Wait() {
	h.sessions.Wait()
}
