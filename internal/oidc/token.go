package oidc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/auth"
	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/storage/db"
)

// GrantType enumerates what `token` accepts. password is deliberately
// absent: §1's Non-goals exclude this system from primary credential
// verification, so there is nothing for a password grant to verify against.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantClientCredentials GrantType = "client_credentials"
)

// TokenResult is the token endpoint's response shape — the standard OAuth2
// token response — matching §8's contract: RefreshToken is a pointer so an
// absent refresh token serializes as JSON null rather than an empty string.
// None of the three grants sets it; the upstream refresh token obtained in
// the authorization_code exchange is not passed back to the caller.
type TokenResult struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int     `json:"expires_in"`
}

// Token implements the `token` endpoint's three supported grants. Missing
// required parameters surface as apperr.KindBadRequest, matching §4.6's
// "missing parameters ⇒ 400".
func (f *Facade) Token(ctx context.Context, grant GrantType, params TokenParams, dev session.Device) (*TokenResult, error) {
	switch grant {
	case GrantAuthorizationCode:
		if params.Code == "" {
			return nil, missingParam("code")
		}
		idToken, _, err := f.exchangeAndMint(ctx, params.Code, dev)
		if err != nil {
			return nil, err
		}
		return &TokenResult{AccessToken: idToken, TokenType: "Bearer", ExpiresIn: int(f.tokens.IdentityTTL().Seconds())}, nil

	case GrantRefreshToken:
		if params.RefreshToken == "" {
			return nil, missingParam("refresh_token")
		}
		return f.refreshIdentityToken(ctx, params.RefreshToken)

	case GrantClientCredentials:
		if params.ClientID == "" || params.ClientSecret == "" {
			return nil, missingParam("client_id/client_secret")
		}
		return f.clientCredentialsToken(ctx, params.ClientID, params.ClientSecret)

	default:
		return nil, apperr.New(apperr.KindBadRequest, "unsupported_grant_type", "UNSUPPORTED_GRANT_TYPE",
			"grant_type must be one of authorization_code, refresh_token, client_credentials")
	}
}

// TokenParams is the union of fields any of the three grants may use.
type TokenParams struct {
	Code         string
	RefreshToken string
	ClientID     string
	ClientSecret string
}

func missingParam(name string) error {
	return apperr.New(apperr.KindBadRequest, "missing_parameter", "MISSING_PARAMETER",
		fmt.Sprintf("missing required parameter: %s", name))
}

// refreshIdentityToken delegates the refresh to the upstream IdP, then
// re-mints an Identity Token carrying the sid of the user's most recently
// created active session. The upstream refresh token is not linked to a
// session, so this is not necessarily the session the original token was
// bound to.
func (f *Facade) refreshIdentityToken(ctx context.Context, refreshToken string) (*TokenResult, error) {
	upstream, err := f.refreshUpstream(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing upstream token: %w", err)
	}
	claims, err := parseUpstreamIdentity(upstream.IDToken)
	if err != nil {
		return nil, err
	}

	q := db.New(f.pool)
	u, err := q.GetUserByUpstreamSub(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("resolving user for refresh: %w", err)
	}
	userID := uuid.UUID(u.ID.Bytes)

	sessions, err := f.sess.List(ctx, userID)
	if err != nil || len(sessions) == 0 {
		return nil, apperr.New(apperr.KindUnauthorized, "no_active_session", "NO_ACTIVE_SESSION",
			"no active session to refresh against")
	}
	sid := uuid.UUID(sessions[0].ID.Bytes).String()

	idToken, err := f.tokens.IssueIdentityToken(userID, sid, u.Email, displayNameOf(u))
	if err != nil {
		return nil, fmt.Errorf("re-minting identity token: %w", err)
	}
	return &TokenResult{AccessToken: idToken, TokenType: "Bearer", ExpiresIn: int(f.tokens.IdentityTTL().Seconds())}, nil
}

// clientCredentialsToken verifies the client secret by constant-time
// comparison against the stored bcrypt hash and, on success, issues a
// Service-Client Token. No refresh token is minted for this grant.
func (f *Facade) clientCredentialsToken(ctx context.Context, clientID, clientSecret string) (*TokenResult, error) {
	q := db.New(f.pool)
	client, err := q.GetClientByClientID(ctx, clientID)
	if err != nil {
		return nil, ErrInvalidClientSecret
	}
	if !client.SecretHash.Valid {
		return nil, ErrInvalidClientSecret
	}

	hasher := auth.NewBcryptHasher()
	if err := hasher.Compare(client.SecretHash.String, clientSecret); err != nil {
		return nil, ErrInvalidClientSecret
	}

	svc, err := q.GetServiceByID(ctx, client.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("loading service for client: %w", err)
	}

	var tenantID string
	if svc.TenantID.Valid {
		tenantID = uuid.UUID(svc.TenantID.Bytes).String()
	}

	token, err := f.tokens.IssueServiceClientToken(uuid.UUID(svc.ID.Bytes), tenantID)
	if err != nil {
		return nil, fmt.Errorf("issuing service-client token: %w", err)
	}
	return &TokenResult{AccessToken: token, TokenType: "Bearer", ExpiresIn: int(f.tokens.ServiceTTL().Seconds())}, nil
}
