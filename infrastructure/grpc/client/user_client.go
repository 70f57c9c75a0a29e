package client

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"chat-service/errors"
	"chat-service/infrastructure/grpc/identity"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ contract.IUserDirectory = (*UserClient)(nil)

// UserClient resolves users through the identity service.
type UserClient struct {
	conn grpc.ClientConnInterface
	log  *slog.Logger
}

func NewUserClient(conn grpc.ClientConnInterface, log *slog.Logger) *UserClient {
	return &UserClient{conn: conn, log: log}
}

// Dial creates a lazy connection: nothing is attempted until the first call.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(addr, opts...)
}

// GetUser returns ErrUserNotFound when the identity service answers NotFound.
// Every other failure, deadline included, is ErrUpstreamUnavailable.
func (c *UserClient) GetUser(ctx context.Context, userID uuid.UUID) (chat.UserIdentity, error) {
	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, identity.GetUserByUidFullName, wrapperspb.String(userID.String()), out)
	if err != nil {
		st := status.Convert(err)
		if st.Code() == codes.NotFound {
			return chat.UserIdentity{}, fmt.Errorf("%w: %s", errors.ErrUserNotFound, st.Message())
		}
		c.log.Debug("Identity call failed", "user_id", userID, "code", st.Code(), "error", st.Message())
		return chat.UserIdentity{}, fmt.Errorf("%w: %s: %s", errors.ErrUpstreamUnavailable, st.Code(), st.Message())
	}

	user, err := identity.FromStruct(out)
	if err != nil {
		return chat.UserIdentity{}, fmt.Errorf("%w: %w", errors.ErrUpstreamUnavailable, err)
	}
	return user, nil
}
