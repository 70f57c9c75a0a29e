package api

import (
	"chat-service/auth"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the REST API and the realtime endpoint. tokens may be nil,
// in which case the API is open.
func NewRouter(chats *ChatHandler, messages *MessageHandler, ws *WSHandler,
	tokens *auth.TokenManager, log *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(log))

	apiRouter := router.PathPrefix("/api").Subrouter()
	if tokens != nil {
		apiRouter.Use(auth.Middleware(tokens, respondError(log)))
	}

	apiRouter.HandleFunc("/chats", chats.CreateChat).Methods(http.MethodPost)
	apiRouter.HandleFunc("/chats/user/{user_id}", chats.ListUserChats).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/{id}", chats.GetChat).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/{id}/participants", chats.ListParticipants).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/{id}/participants/{user_id}", chats.AddParticipant).Methods(http.MethodPost)
	apiRouter.HandleFunc("/chats/{id}/participants/{user_id}", chats.RemoveParticipant).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/messages", messages.CreateMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/chat/{chat_uid}", messages.ListMessages).Methods(http.MethodGet)

	router.HandleFunc("/ws/messages/chat_uid/{chat_uid}/user_uid/{user_uid}", ws.Connect).Methods(http.MethodGet)
	return router
}
