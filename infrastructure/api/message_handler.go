package api

import (
	"chat-service/domain/chat"
	"chat-service/services"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type MessageHandler struct {
	messages services.IMessageService
	fail     func(w http.ResponseWriter, r *http.Request, err error)
}

func NewMessageHandler(messages services.IMessageService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, fail: respondError(log)}
}

// CreateMessage handles POST /api/messages. Unlike realtime messages, the
// write is synchronous and the stored message is returned.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var body CreateMessageRequest
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	chatID, err := parseID(body.ChatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := parseID(body.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := h.messages.CreateMessage(r.Context(), chat.PostMessageCommand{
		ChatID:   chatID,
		AuthorID: userID,
		Content:  body.Content,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Message successfully created", toMessageView(m))
}

// ListMessages handles GET /api/messages/chat/{chat_uid}.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseID(mux.Vars(r)["chat_uid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	messages, err := h.messages.ListMessages(r.Context(), chatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Messages successfully retrieved", lo.Map(messages, func(m chat.Message, _ int) MessageView {
		return toMessageView(m)
	}))
}
