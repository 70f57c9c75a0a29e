package api

import (
	"chat-service/domain/chat"
	"chat-service/errors"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var validate = validator.New()

// Identifiers are parsed with uuid.Parse after validation, like path
// parameters, so any letter case is accepted.
type CreateChatRequest struct {
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
	Name         *string  `json:"name" validate:"omitempty,max=255"`
}

type CreateMessageRequest struct {
	ChatID  string `json:"chat_uid" validate:"required"`
	UserID  string `json:"user_uid" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type ChatView struct {
	ID        uuid.UUID `json:"uid"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ParticipantView struct {
	ChatID   uuid.UUID `json:"chat_uid"`
	UserID   uuid.UUID `json:"user_uid"`
	JoinedAt time.Time `json:"joined_at"`
}

type MessageView struct {
	ID        uuid.UUID `json:"uid"`
	ChatID    uuid.UUID `json:"chat_uid"`
	UserID    uuid.UUID `json:"user_uid"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// decode reads a JSON body and runs the struct validation rules.
// Every failure is a validation error.
func decode(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errors.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrValidation, describe(err))
	}
	return nil
}

func describe(err error) string {
	var fieldErrors validator.ValidationErrors
	if !goerrors.As(err, &fieldErrors) {
		return err.Error()
	}
	return strings.Join(lo.Map(fieldErrors, func(fe validator.FieldError, _ int) string {
		return fmt.Sprintf("%s fails on %q", fe.Namespace(), fe.Tag())
	}), ", ")
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", errors.ErrInvalidID, raw)
	}
	return id, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := parseID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func toChatView(c chat.Chat) ChatView {
	return ChatView{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func toParticipantView(p chat.Participant) ParticipantView {
	return ParticipantView{ChatID: p.ChatID, UserID: p.UserID, JoinedAt: p.JoinedAt}
}

func toMessageView(m chat.Message) MessageView {
	return MessageView{ID: m.ID, ChatID: m.ChatID, UserID: m.AuthorID, Content: m.Content, CreatedAt: m.CreatedAt}
}
