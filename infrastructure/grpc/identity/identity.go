// Package identity describes the user lookup RPC of the identity service.
//
// The service exchanges well-known protobuf types only: the request is a
// StringValue holding the user UUID, the response a Struct with the "uid",
// "username" and "email" string fields.
package identity

import (
	"chat-service/domain/chat"
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName          = "user_service_grpc.UserServiceGrpc"
	GetUserByUidName     = "GetUserByUid"
	GetUserByUidFullName = "/" + ServiceName + "/" + GetUserByUidName

	fieldUID      = "uid"
	fieldUsername = "username"
	fieldEmail    = "email"
)

// UserServiceServer is the server side of the lookup RPC.
type UserServiceServer interface {
	GetUserByUid(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

func RegisterUserServiceServer(registrar grpc.ServiceRegistrar, srv UserServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: GetUserByUidName, Handler: getUserByUidHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "user_service_grpc.proto",
}

func getUserByUidHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).GetUserByUid(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetUserByUidFullName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).GetUserByUid(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func ToStruct(user chat.UserIdentity) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldUID:      user.ID.String(),
		fieldUsername: user.Username,
		fieldEmail:    user.Email,
	})
}

// FromStruct rejects a response without a valid "uid".
func FromStruct(s *structpb.Struct) (chat.UserIdentity, error) {
	fields := s.GetFields()
	id, err := uuid.Parse(fields[fieldUID].GetStringValue())
	if err != nil {
		return chat.UserIdentity{}, fmt.Errorf("invalid %q in identity response: %w", fieldUID, err)
	}
	return chat.UserIdentity{
		ID:       id,
		Username: fields[fieldUsername].GetStringValue(),
		Email:    fields[fieldEmail].GetStringValue(),
	}, nil
}
