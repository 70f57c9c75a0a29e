package api

import (
	"chat-service/domain/chat"
	"chat-service/services"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type ChatHandler struct {
	chats services.IChatService
	fail  func(w http.ResponseWriter, r *http.Request, err error)
}

func NewChatHandler(chats services.IChatService, log *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, fail: respondError(log)}
}

// CreateChat handles POST /api/chats.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var body CreateChatRequest
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	participants, err := parseIDs(body.Participants)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	created, err := h.chats.CreateChat(r.Context(), chat.CreateChatCommand{Name: body.Name, Participants: participants})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Chat has been successfully created", toChatView(created))
}

// GetChat handles GET /api/chats/{id}.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.chats.GetChat(r.Context(), chatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Chat successfully received", toChatView(c))
}

// ListUserChats handles GET /api/chats/user/{user_id}.
func (h *ChatHandler) ListUserChats(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	chats, err := h.chats.ListUserChats(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "The chats have been successfully received", lo.Map(chats, func(c chat.Chat, _ int) ChatView {
		return toChatView(c)
	}))
}

// ListParticipants handles GET /api/chats/{id}/participants.
func (h *ChatHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	participants, err := h.chats.ListParticipants(r.Context(), chatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Chat participants successfully received", participants)
}

// AddParticipant handles POST /api/chats/{id}/participants/{user_id}.
func (h *ChatHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chatID, err := parseID(vars["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := parseID(vars["user_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	participant, err := h.chats.AddParticipant(r.Context(), chatID, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Participant successfully added", toParticipantView(participant))
}

// RemoveParticipant handles DELETE /api/chats/{id}/participants/{user_id}.
func (h *ChatHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chatID, err := parseID(vars["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := parseID(vars["user_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err = h.chats.RemoveParticipant(r.Context(), chatID, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Participant successfully removed", nil)
}
