package server

import (
	"chat-service/errors"
	"chat-service/infrastructure/grpc/identity"
	"chat-service/infrastructure/storage"
	"chat-service/mocks"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestUserServer_GetUserByUid(t *testing.T) {
	ass := assert.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	id := uuid.New()
	users.EXPECT().GetUser(id).Return(storage.User{ID: id, Username: "bob", Email: "bob@example.com"}, nil)

	s := NewUserServer(users, logs.GetLoggerFromLevel(slog.LevelDebug))

	res, err := s.GetUserByUid(context.Background(), wrapperspb.String(id.String()))
	ass.NoError(err)

	user, err := identity.FromStruct(res)
	ass.NoError(err)
	ass.Equal(id, user.ID)
	ass.Equal("bob", user.Username)
}

func TestUserServer_GetUserByUid_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	missing, broken := uuid.New(), uuid.New()
	users.EXPECT().GetUser(missing).Return(storage.User{}, errors.ErrUserNotFound).AnyTimes()
	users.EXPECT().GetUser(broken).Return(storage.User{}, errors.ErrPersistence).AnyTimes()

	s := NewUserServer(users, logs.GetLoggerFromLevel(slog.LevelDebug))

	tests := []struct {
		name string
		uid  string
		code codes.Code
	}{
		{name: "invalid uuid", uid: "nope", code: codes.InvalidArgument},
		{name: "unknown user", uid: missing.String(), code: codes.NotFound},
		{name: "storage failure", uid: broken.String(), code: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.GetUserByUid(context.Background(), wrapperspb.String(tt.uid))
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
