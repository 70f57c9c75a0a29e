//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"chat-service/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	CreateChat(ctx context.Context, cmd chat.CreateChatCommand) (chat.Chat, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (chat.Chat, error)
	ListUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error)
	AddParticipant(ctx context.Context, chatID, userID uuid.UUID) (chat.Participant, error)
	RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error
	ListParticipants(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
}

type ChatService struct {
	repository contract.IChatRepository
	verifier   *Verifier
	log        *slog.Logger
	now        func() time.Time
}

func NewChatService(repository contract.IChatRepository, verifier *Verifier, log *slog.Logger) *ChatService {
	return &ChatService{
		repository: repository,
		verifier:   verifier,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateChat commits a chat and all of its participants, or nothing.
//
// Participants are checked in a fixed order: the list must not be empty, must
// not contain duplicates, then every user must be confirmed by the identity
// service. A single rejected participant aborts the creation before any write.
func (s *ChatService) CreateChat(ctx context.Context, cmd chat.CreateChatCommand) (chat.Chat, error) {
	if len(cmd.Participants) == 0 {
		return chat.Chat{}, errors.ErrEmptyParticipants
	}
	if duplicates := lo.FindDuplicates(cmd.Participants); len(duplicates) > 0 {
		ids := lo.Map(duplicates, func(id uuid.UUID, _ int) string { return id.String() })
		return chat.Chat{}, fmt.Errorf("%w: %s", errors.ErrDuplicateParticipants, strings.Join(ids, ", "))
	}

	if err := s.verifier.Verify(ctx, cmd.Participants).Err(); err != nil {
		return chat.Chat{}, err
	}

	now := s.now()
	c := chat.Chat{
		ID:        uuid.New(),
		Name:      normalizeName(cmd.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	participants := lo.Map(cmd.Participants, func(userID uuid.UUID, _ int) chat.Participant {
		return chat.Participant{ChatID: c.ID, UserID: userID, JoinedAt: now}
	})

	if err := s.repository.CreateChat(ctx, c, participants); err != nil {
		s.log.Error("Failed to create chat", "chat_id", c.ID, "error", err)
		return chat.Chat{}, err
	}
	s.log.Info("Chat created", "chat_id", c.ID, "participants", len(participants))
	return c, nil
}

func (s *ChatService) GetChat(ctx context.Context, chatID uuid.UUID) (chat.Chat, error) {
	return s.repository.GetChat(ctx, chatID)
}

func (s *ChatService) ListUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	return s.repository.ListUserChats(ctx, userID)
}

// AddParticipant verifies one user and adds it to an existing chat.
func (s *ChatService) AddParticipant(ctx context.Context, chatID, userID uuid.UUID) (chat.Participant, error) {
	if _, err := s.repository.GetChat(ctx, chatID); err != nil {
		return chat.Participant{}, err
	}
	if err := s.verifier.Verify(ctx, []uuid.UUID{userID}).Err(); err != nil {
		return chat.Participant{}, err
	}

	participant := chat.Participant{ChatID: chatID, UserID: userID, JoinedAt: s.now()}
	if err := s.repository.AddParticipant(ctx, participant); err != nil {
		return chat.Participant{}, err
	}
	s.log.Info("Participant added", "chat_id", chatID, "user_id", userID)
	return participant, nil
}

func (s *ChatService) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	if err := s.repository.RemoveParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	s.log.Info("Participant removed", "chat_id", chatID, "user_id", userID)
	return nil
}

func (s *ChatService) ListParticipants(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	return s.repository.ListParticipants(ctx, chatID)
}

// A blank name is no name.
func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return lo.ToPtr(trimmed)
}
