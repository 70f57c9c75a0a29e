package server

import (
	"chat-service/domain/chat"
	"chat-service/errors"
	"chat-service/infrastructure/grpc/identity"
	"chat-service/infrastructure/storage"
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ identity.UserServiceServer = (*UserServer)(nil)

// UserServer answers user lookups from the local user store.
type UserServer struct {
	users storage.IUserRepository
	log   *slog.Logger
}

func NewUserServer(users storage.IUserRepository, log *slog.Logger) *UserServer {
	return &UserServer{users: users, log: log}
}

func (s *UserServer) GetUserByUid(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := uuid.Parse(req.GetValue())
	if err != nil {
		return nil, errors.MapToGRPCError(errors.ErrInvalidID)
	}

	user, err := s.users.GetUser(id)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}

	res, err := identity.ToStruct(chat.UserIdentity{ID: user.ID, Username: user.Username, Email: user.Email})
	if err != nil {
		s.log.Error("Failed to encode user", "user_id", id, "error", err)
		return nil, errors.MapToGRPCError(err)
	}
	return res, nil
}
