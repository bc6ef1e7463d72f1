package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const apiKeyMetadataKey = "x-auth9-api-key"

// KeyValidator checks a presented API key's validity. cmd/server builds the
// gRPC server without TLS transport credentials, so there is no mTLS path:
// this key check is the only authentication on the gRPC surface.
type KeyValidator func(ctx context.Context, apiKey string) (bool, error)

// APIKeyInterceptor rejects any call lacking a valid x-auth9-api-key
// metadata entry; no other credential is accepted in its place.
func APIKeyInterceptor(validate KeyValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		values := md.Get(apiKeyMetadataKey)
		if len(values) == 0 || values[0] == "" {
			return nil, status.Error(codes.Unauthenticated, "missing api key")
		}
		ok, err := validate(ctx, values[0])
		if err != nil {
			return nil, status.Error(codes.Internal, "api key validation failed")
		}
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}
