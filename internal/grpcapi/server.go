package grpcapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/exchange"
	"github.com/auth9/auth9/internal/grpcapi/pb"
	"github.com/auth9/auth9/internal/policy"
	"github.com/auth9/auth9/internal/storage/db"
	"github.com/auth9/auth9/internal/token"
)

// Server implements TokenExchangeServer over the same domain services the
// HTTP façade uses, so the two surfaces never drift in what a token
// exchange or validation actually means.
type Server struct {
	tokens   *token.Service
	exchange *exchange.Service
	policy   *policy.Engine
	queries  *db.Queries
}

func NewServer(tokens *token.Service, ex *exchange.Service, pol *policy.Engine, q *db.Queries) *Server {
	return &Server{tokens: tokens, exchange: ex, policy: pol, queries: q}
}

func (s *Server) ExchangeToken(ctx context.Context, req *pb.ExchangeTokenRequest) (*pb.ExchangeTokenResponse, error) {
	claims, err := s.tokens.Verify(req.IdentityToken, token.AudienceIdentity)
	if err != nil {
		return nil, err
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return nil, err
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		return nil, err
	}

	result, err := s.exchange.Exchange(ctx, claims.TokenType, claims, exchange.Request{TenantID: tenantID, ServiceID: serviceID})
	if err != nil {
		return nil, err
	}
	return &pb.ExchangeTokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    int32(result.ExpiresIn),
	}, nil
}

func (s *Server) ValidateToken(ctx context.Context, req *pb.ValidateTokenRequest) (*pb.ValidateTokenResponse, error) {
	claims, err := s.tokens.Verify(req.Token, req.ExpectedAudience)
	if err != nil {
		return &pb.ValidateTokenResponse{Valid: false, Error: err.Error()}, nil
	}
	return &pb.ValidateTokenResponse{
		Valid:     true,
		Subject:   claims.Subject,
		TokenType: string(claims.TokenType),
	}, nil
}

func (s *Server) GetUserRoles(ctx context.Context, req *pb.GetUserRolesRequest) (*pb.GetUserRolesResponse, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, err
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return nil, err
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		return nil, err
	}
	roles, permissions, err := s.policy.ResolveRoles(ctx, userID, tenantID, serviceID)
	if err != nil {
		return nil, err
	}
	return &pb.GetUserRolesResponse{Roles: roles, Permissions: permissions}, nil
}

func (s *Server) IntrospectToken(ctx context.Context, req *pb.IntrospectTokenRequest) (*pb.IntrospectTokenResponse, error) {
	// Introspection accepts all three token kinds: try the two fixed
	// audiences first rather than requiring the caller to know the token's
	// kind up front.
	for _, aud := range []string{token.AudienceIdentity, token.AudienceService} {
		if claims, err := s.tokens.Verify(req.Token, aud); err == nil {
			var expiresAt int64
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Unix()
			}
			return &pb.IntrospectTokenResponse{
				Active:    true,
				Subject:   claims.Subject,
				TokenType: string(claims.TokenType),
				ExpiresAt: expiresAt,
				TenantID:  claims.TenantID,
			}, nil
		}
	}
	// Tenant-Access tokens carry a per-service audience (the client-id), not
	// one of the two fixed audiences above, so fall back to an
	// audience-agnostic parse for introspection purposes only.
	claims, err := s.tokens.VerifyAnyAudience(req.Token)
	if err != nil {
		return &pb.IntrospectTokenResponse{Active: false}, nil
	}
	var expiresAt int64
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Unix()
	}
	return &pb.IntrospectTokenResponse{
		Active:    true,
		Subject:   claims.Subject,
		TokenType: string(claims.TokenType),
		ExpiresAt: expiresAt,
		TenantID:  claims.TenantID,
	}, nil
}
