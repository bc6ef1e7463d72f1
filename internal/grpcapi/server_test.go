package grpcapi_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/auth9/auth9/internal/grpcapi"
	"github.com/auth9/auth9/internal/grpcapi/pb"
	"github.com/auth9/auth9/internal/token"
)

func newTestTokenService(t *testing.T) *token.Service {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	svc, err := token.NewService("https://auth9.test", string(pem.EncodeToMemory(block)), nil)
	require.NoError(t, err)
	return svc
}

func TestServer_ValidateToken_RoundTrip(t *testing.T) {
	tokens := newTestTokenService(t)
	srv := grpcapi.NewServer(tokens, nil, nil, nil)

	userID := uuid.New()
	idToken, err := tokens.IssueIdentityToken(userID, uuid.New().String(), "a@example.test", "A")
	require.NoError(t, err)

	resp, err := srv.ValidateToken(context.Background(), &pb.ValidateTokenRequest{
		Token:            idToken,
		ExpectedAudience: token.AudienceIdentity,
	})
	require.NoError(t, err)
	require.True(t, resp.Valid)
	require.Equal(t, userID.String(), resp.Subject)
	require.Equal(t, string(token.KindIdentity), resp.TokenType)
}

func TestServer_ValidateToken_WrongAudienceIsInvalid(t *testing.T) {
	tokens := newTestTokenService(t)
	srv := grpcapi.NewServer(tokens, nil, nil, nil)

	idToken, err := tokens.IssueIdentityToken(uuid.New(), uuid.New().String(), "a@example.test", "A")
	require.NoError(t, err)

	resp, err := srv.ValidateToken(context.Background(), &pb.ValidateTokenRequest{
		Token:            idToken,
		ExpectedAudience: token.AudienceService,
	})
	require.NoError(t, err)
	require.False(t, resp.Valid)
	require.NotEmpty(t, resp.Error)
}

func TestServer_IntrospectToken_ServiceClientToken(t *testing.T) {
	tokens := newTestTokenService(t)
	srv := grpcapi.NewServer(tokens, nil, nil, nil)

	serviceID := uuid.New()
	svcToken, err := tokens.IssueServiceClientToken(serviceID, "")
	require.NoError(t, err)

	resp, err := srv.IntrospectToken(context.Background(), &pb.IntrospectTokenRequest{Token: svcToken})
	require.NoError(t, err)
	require.True(t, resp.Active)
	require.Equal(t, serviceID.String(), resp.Subject)
	require.Equal(t, string(token.KindServiceClient), resp.TokenType)
}

func TestAPIKeyInterceptor_RejectsMissingKey(t *testing.T) {
	interceptor := grpcapi.APIKeyInterceptor(func(ctx context.Context, apiKey string) (bool, error) {
		return apiKey == "good", nil
	})

	info := &grpc.UnaryServerInfo{FullMethod: "/auth9.TokenExchange/ValidateToken"}
	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.Error(t, err)
}
