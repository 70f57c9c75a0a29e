package services

import (
	"chat-service/domain/chat"
	"chat-service/errors"
	"chat-service/mocks"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatFixture struct {
	service    *ChatService
	directory  *mocks.MockIUserDirectory
	repository *mocks.MockIChatRepository
	now        time.Time
}

func newChatFixture(t *testing.T) chatFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	directory := mocks.NewMockIUserDirectory(ctrl)
	repository := mocks.NewMockIChatRepository(ctrl)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	service := NewChatService(repository, NewVerifier(directory, time.Second, log), log)
	service.now = func() time.Time { return now }
	return chatFixture{service: service, directory: directory, repository: repository, now: now}
}

func TestChatService_CreateChat(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	a, b := uuid.New(), uuid.New()

	// Given both participants exist
	f.directory.EXPECT().GetUser(gomock.Any(), a).Return(chat.UserIdentity{ID: a}, nil)
	f.directory.EXPECT().GetUser(gomock.Any(), b).Return(chat.UserIdentity{ID: b}, nil)

	var storedChat chat.Chat
	var storedParticipants []chat.Participant
	f.repository.EXPECT().CreateChat(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c chat.Chat, participants []chat.Participant) error {
			storedChat, storedParticipants = c, participants
			return nil
		}).Times(1)

	// When the chat is created
	created, err := f.service.CreateChat(context.Background(), chat.CreateChatCommand{
		Name:         lo.ToPtr("  team  "),
		Participants: []uuid.UUID{a, b},
	})

	// Then the chat and both memberships are written in one call
	req.NoError(err)
	req.NotEqual(uuid.Nil, created.ID)
	req.Equal("team", *created.Name)
	req.Equal(f.now, created.CreatedAt)
	req.Equal(created, storedChat)
	req.Equal([]chat.Participant{
		{ChatID: created.ID, UserID: a, JoinedAt: f.now},
		{ChatID: created.ID, UserID: b, JoinedAt: f.now},
	}, storedParticipants)
}

func TestChatService_CreateChat_Rejects_Empty_Participants(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	_, err := f.service.CreateChat(context.Background(), chat.CreateChatCommand{})

	req.ErrorIs(err, errors.ErrEmptyParticipants)
	req.ErrorIs(err, errors.ErrValidation)
}

func TestChatService_CreateChat_Rejects_Duplicates_Before_Lookup(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	a := uuid.New()

	// Given no identity lookup and no write may happen
	f.directory.EXPECT().GetUser(gomock.Any(), gomock.Any()).Times(0)
	f.repository.EXPECT().CreateChat(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// When the same participant is listed twice
	_, err := f.service.CreateChat(context.Background(), chat.CreateChatCommand{Participants: []uuid.UUID{a, a}})

	// Then the request is rejected as invalid
	req.ErrorIs(err, errors.ErrDuplicateParticipants)
	req.Contains(err.Error(), a.String())
}

func TestChatService_CreateChat_Missing_Participant_Writes_Nothing(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	// Given B does not exist
	f.directory.EXPECT().GetUser(gomock.Any(), a).Return(chat.UserIdentity{ID: a}, nil)
	f.directory.EXPECT().GetUser(gomock.Any(), b).Return(chat.UserIdentity{}, fmt.Errorf("%w: unknown", errors.ErrUserNotFound))
	f.directory.EXPECT().GetUser(gomock.Any(), c).Return(chat.UserIdentity{ID: c}, nil)
	f.repository.EXPECT().CreateChat(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// When creating a chat with A, B and C
	_, err := f.service.CreateChat(context.Background(), chat.CreateChatCommand{Participants: []uuid.UUID{a, b, c}})

	// Then it is a not-found error naming B only
	req.ErrorIs(err, errors.ErrNotFound)
	req.False(goerrors.Is(err, errors.ErrUpstreamUnavailable))
	pErr, ok := errors.AsParticipantError(err)
	req.True(ok)
	req.Len(pErr.Failures, 1)
	req.Equal(b.String(), pErr.Failures[0].UserID)
}

func TestChatService_CreateChat_Identity_Outage(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	a := uuid.New()

	f.directory.EXPECT().GetUser(gomock.Any(), a).Return(chat.UserIdentity{}, fmt.Errorf("%w: down", errors.ErrUpstreamUnavailable))
	f.repository.EXPECT().CreateChat(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.service.CreateChat(context.Background(), chat.CreateChatCommand{Participants: []uuid.UUID{a}})

	req.ErrorIs(err, errors.ErrUpstreamUnavailable)
	req.Equal(503, errors.HTTPStatus(err))
}

func TestChatService_CreateChat_Storage_Failure(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	a := uuid.New()

	f.directory.EXPECT().GetUser(gomock.Any(), a).Return(chat.UserIdentity{ID: a}, nil)
	f.repository.EXPECT().CreateChat(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.ErrPersistence)

	_, err := f.service.CreateChat(context.Background(), chat.CreateChatCommand{Participants: []uuid.UUID{a}})

	req.ErrorIs(err, errors.ErrPersistence)
}

func TestChatService_AddParticipant(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	chatID, userID := uuid.New(), uuid.New()

	f.repository.EXPECT().GetChat(gomock.Any(), chatID).Return(chat.Chat{ID: chatID}, nil)
	f.directory.EXPECT().GetUser(gomock.Any(), userID).Return(chat.UserIdentity{ID: userID}, nil)
	f.repository.EXPECT().AddParticipant(gomock.Any(), chat.Participant{ChatID: chatID, UserID: userID, JoinedAt: f.now}).Return(nil)

	participant, err := f.service.AddParticipant(context.Background(), chatID, userID)

	req.NoError(err)
	req.Equal(userID, participant.UserID)
}

func TestChatService_AddParticipant_Missing_Chat_Skips_Lookup(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	chatID, userID := uuid.New(), uuid.New()

	f.repository.EXPECT().GetChat(gomock.Any(), chatID).Return(chat.Chat{}, errors.ErrChatNotFound)
	f.directory.EXPECT().GetUser(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.service.AddParticipant(context.Background(), chatID, userID)

	req.ErrorIs(err, errors.ErrChatNotFound)
}

func TestChatService_AddParticipant_Unknown_User(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	chatID, userID := uuid.New(), uuid.New()

	f.repository.EXPECT().GetChat(gomock.Any(), chatID).Return(chat.Chat{ID: chatID}, nil)
	f.directory.EXPECT().GetUser(gomock.Any(), userID).Return(chat.UserIdentity{}, errors.ErrUserNotFound)
	f.repository.EXPECT().AddParticipant(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.service.AddParticipant(context.Background(), chatID, userID)

	req.ErrorIs(err, errors.ErrNotFound)
}
