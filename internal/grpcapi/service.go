package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/auth9/auth9/internal/grpcapi/pb"
)

// TokenExchangeServer is the auth9.TokenExchange service (§6): ExchangeToken,
// ValidateToken, GetUserRoles, IntrospectToken.
type TokenExchangeServer interface {
	ExchangeToken(context.Context, *pb.ExchangeTokenRequest) (*pb.ExchangeTokenResponse, error)
	ValidateToken(context.Context, *pb.ValidateTokenRequest) (*pb.ValidateTokenResponse, error)
	GetUserRoles(context.Context, *pb.GetUserRolesRequest) (*pb.GetUserRolesResponse, error)
	IntrospectToken(context.Context, *pb.IntrospectTokenRequest) (*pb.IntrospectTokenResponse, error)
}

// TokenExchangeClient mirrors the generated client interface shape seen in
// the growth-server example's authClient package.
type TokenExchangeClient interface {
	ExchangeToken(ctx context.Context, in *pb.ExchangeTokenRequest, opts ...grpc.CallOption) (*pb.ExchangeTokenResponse, error)
	ValidateToken(ctx context.Context, in *pb.ValidateTokenRequest, opts ...grpc.CallOption) (*pb.ValidateTokenResponse, error)
	GetUserRoles(ctx context.Context, in *pb.GetUserRolesRequest, opts ...grpc.CallOption) (*pb.GetUserRolesResponse, error)
	IntrospectToken(ctx context.Context, in *pb.IntrospectTokenRequest, opts ...grpc.CallOption) (*pb.IntrospectTokenResponse, error)
}

type tokenExchangeClient struct {
	cc grpc.ClientConnInterface
}

// NewTokenExchangeClient dials through cc, forcing the JSON content-subtype
// codec on every call (see codec.go).
func NewTokenExchangeClient(cc grpc.ClientConnInterface) TokenExchangeClient {
	return &tokenExchangeClient{cc: cc}
}

func (c *tokenExchangeClient) call(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(jsonCodecName))
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *tokenExchangeClient) ExchangeToken(ctx context.Context, in *pb.ExchangeTokenRequest, opts ...grpc.CallOption) (*pb.ExchangeTokenResponse, error) {
	out := new(pb.ExchangeTokenResponse)
	if err := c.call(ctx, "/auth9.TokenExchange/ExchangeToken", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tokenExchangeClient) ValidateToken(ctx context.Context, in *pb.ValidateTokenRequest, opts ...grpc.CallOption) (*pb.ValidateTokenResponse, error) {
	out := new(pb.ValidateTokenResponse)
	if err := c.call(ctx, "/auth9.TokenExchange/ValidateToken", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tokenExchangeClient) GetUserRoles(ctx context.Context, in *pb.GetUserRolesRequest, opts ...grpc.CallOption) (*pb.GetUserRolesResponse, error) {
	out := new(pb.GetUserRolesResponse)
	if err := c.call(ctx, "/auth9.TokenExchange/GetUserRoles", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tokenExchangeClient) IntrospectToken(ctx context.Context, in *pb.IntrospectTokenRequest, opts ...grpc.CallOption) (*pb.IntrospectTokenResponse, error) {
	out := new(pb.IntrospectTokenResponse)
	if err := c.call(ctx, "/auth9.TokenExchange/IntrospectToken", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _TokenExchange_ExchangeToken_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(pb.ExchangeTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenExchangeServer).ExchangeToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auth9.TokenExchange/ExchangeToken"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TokenExchangeServer).ExchangeToken(ctx, req.(*pb.ExchangeTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TokenExchange_ValidateToken_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(pb.ValidateTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenExchangeServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auth9.TokenExchange/ValidateToken"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TokenExchangeServer).ValidateToken(ctx, req.(*pb.ValidateTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TokenExchange_GetUserRoles_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(pb.GetUserRolesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenExchangeServer).GetUserRoles(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auth9.TokenExchange/GetUserRoles"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TokenExchangeServer).GetUserRoles(ctx, req.(*pb.GetUserRolesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TokenExchange_IntrospectToken_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(pb.IntrospectTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenExchangeServer).IntrospectToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auth9.TokenExchange/IntrospectToken"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TokenExchangeServer).IntrospectToken(ctx, req.(*pb.IntrospectTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// _TokenExchange_serviceDesc is the hand-authored equivalent of what
// protoc-gen-go-grpc would emit for tokenexchange.proto's service block.
var _TokenExchange_serviceDesc = grpc.ServiceDesc{
	ServiceName: "auth9.TokenExchange",
	HandlerType: (*TokenExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExchangeToken", Handler: _TokenExchange_ExchangeToken_Handler},
		{MethodName: "ValidateToken", Handler: _TokenExchange_ValidateToken_Handler},
		{MethodName: "GetUserRoles", Handler: _TokenExchange_GetUserRoles_Handler},
		{MethodName: "IntrospectToken", Handler: _TokenExchange_IntrospectToken_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tokenexchange.proto",
}

// RegisterTokenExchangeServer wires srv into s under the auth9.TokenExchange
// service name.
func RegisterTokenExchangeServer(s *grpc.Server, srv TokenExchangeServer) {
	s.RegisterService(&_TokenExchange_serviceDesc, srv)
}
