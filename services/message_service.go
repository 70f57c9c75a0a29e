//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type IMessageService interface {
	CreateMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]chat.Message, error)
}

var _ contract.IMessageWriter = (*MessageService)(nil)

// MessageService is the single write path for messages, used both by the
// HTTP API and by the persistence workers of live connections.
type MessageService struct {
	messages         contract.IMessageRepository
	chats            contract.IChatRepository
	maxContentLength int
	log              *slog.Logger
}

func NewMessageService(messages contract.IMessageRepository, chats contract.IChatRepository,
	maxContentLength int, log *slog.Logger) *MessageService {
	if maxContentLength <= 0 {
		maxContentLength = chat.DefaultMaxContentLength
	}
	return &MessageService{messages: messages, chats: chats, maxContentLength: maxContentLength, log: log}
}

// CreateMessage validates the content and stores the message. The store
// rejects a message for a chat that does not exist.
func (s *MessageService) CreateMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	if err := chat.ValidateContent(cmd.Content, s.maxContentLength); err != nil {
		return chat.Message{}, err
	}
	return s.messages.CreateMessage(ctx, cmd)
}

// ListMessages returns the messages of a chat, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, chatID uuid.UUID) ([]chat.Message, error) {
	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, chatID)
}
