package identity

import (
	"context"

	"google.golang.org/grpc"
)

const (
	// ServiceName is the fully-qualified gRPC service name
	ServiceName = "user.IdentityService"

	// GetUserContextMethod is the full method path of the unary call
	GetUserContextMethod = "/" + ServiceName + "/GetUserContext"
)

// IdentityServer is the server side of the contract. The gateway never
// implements it; it exists so local fakes and tests can serve the contract.
type IdentityServer interface {
	GetUserContext(context.Context, *GetUserContextRequest) (*UserContextResponse, error)
}

// RegisterIdentityServer registers srv on s. The server must be created
// with grpc.ForceServerCodec(Codec{}).
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&identityServiceDesc, srv)
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetUserContext",
			Handler:    getUserContextHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "user.proto",
}

func getUserContextHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetUserContextRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).GetUserContext(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetUserContextMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityServer).GetUserContext(ctx, req.(*GetUserContextRequest))
	}
	return interceptor(ctx, in, info, handler)
}
