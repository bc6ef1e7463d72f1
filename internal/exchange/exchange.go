// Package exchange is the Token Exchange Service (§4.7): it converts a
// verified Identity Token plus a (tenant, service) pair into a
// Tenant-Access Token, running the RBAC+ABAC Policy Engine in between. No
// direct teacher precedent exists for this endpoint shape; grounded on
// spec §4.7 and wired to internal/token, internal/policy, internal/cache
// exactly as those packages are already grounded elsewhere.
package exchange

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/policy"
	"github.com/auth9/auth9/internal/storage/db"
	"github.com/auth9/auth9/internal/token"
)

// TenantAccessTTL is §4.7's "TTL ≤ 60 min" on the minted Tenant-Access
// Token; the refresh token bound to the same sid lives considerably
// longer so it can outlive several short-lived access tokens.
const (
	TenantAccessTTL        = 60 * time.Minute
	TenantAccessRefreshTTL = 30 * 24 * time.Hour
)

// Service orchestrates the exchange steps.
type Service struct {
	pool   *pgxpool.Pool
	cache  *cache.Store
	tokens *token.Service
}

func NewService(pool *pgxpool.Pool, c *cache.Store, tokens *token.Service) *Service {
	return &Service{pool: pool, cache: c, tokens: tokens}
}

// Request is the body of POST /auth/tenant-token.
type Request struct {
	TenantID  uuid.UUID
	ServiceID uuid.UUID
}

// Result carries the minted Tenant-Access Token and its accompanying
// refresh token. A consumer for the refresh token's own endpoint is a
// documented limitation (§9): it is minted and stored, never exchanged.
type Result struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Exchange runs §4.7's seven steps. callerTokenType must be
// token.KindIdentity (step 1); callerClaims carries the caller's sub and
// sid from that Identity Token.
func (s *Service) Exchange(ctx context.Context, callerTokenType token.Kind, callerClaims *token.Claims, req Request) (*Result, error) {
	if callerTokenType != token.KindIdentity {
		return nil, apperr.New(apperr.KindForbidden, "identity_token_required", "IDENTITY_TOKEN_REQUIRED",
			"token exchange requires an Identity Token")
	}

	userID, err := uuid.Parse(callerClaims.Subject)
	if err != nil {
		return nil, fmt.Errorf("parsing caller subject: %w", err)
	}

	q := db.New(s.pool)
	pgTenantID := pgtype.UUID{Bytes: req.TenantID, Valid: true}
	pgServiceID := pgtype.UUID{Bytes: req.ServiceID, Valid: true}
	pgUserID := pgtype.UUID{Bytes: userID, Valid: true}

	// Step 2: load the target service; confirm global or owned by tenant_id.
	svc, err := q.GetServiceByID(ctx, pgServiceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "service_not_found", "SERVICE_NOT_FOUND", "service not found", err)
	}
	if svc.TenantID.Valid && svc.TenantID.Bytes != pgTenantID.Bytes {
		return nil, apperr.New(apperr.KindForbidden, "service_tenant_mismatch", "SERVICE_TENANT_MISMATCH",
			"service does not belong to tenant")
	}

	// Step 3: if global, confirm enabled for tenant_id via TenantService.
	if !svc.TenantID.Valid {
		ts, err := q.GetTenantService(ctx, pgTenantID, pgServiceID)
		if err != nil || !ts.Enabled {
			return nil, apperr.New(apperr.KindForbidden, "service_not_enabled_for_tenant", "SERVICE_NOT_ENABLED_FOR_TENANT",
				"service is not enabled for this tenant")
		}
	}

	// Step 4: load the membership; absent ⇒ 403.
	if _, err := q.GetMembership(ctx, pgTenantID, pgUserID); err != nil {
		return nil, apperr.New(apperr.KindForbidden, "not_a_member", "NOT_A_MEMBER",
			"caller is not a member of this tenant")
	}

	// Step 5: run the policy engine for (user, tenant, service).
	engine := policy.NewEngine(q, s.cache)
	roles, permissions, err := engine.ResolveRoles(ctx, userID, req.TenantID, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("resolving roles: %w", err)
	}

	clients, err := q.ListClientsByService(ctx, pgServiceID)
	if err != nil || len(clients) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "service_has_no_client", "SERVICE_HAS_NO_CLIENT",
			"service has no registered client to bind the token's audience to")
	}
	clientID := clients[0].ClientID

	// Step 6: mint the Tenant-Access Token, sid copied from the Identity
	// Token, plus a same-sid-bound refresh token.
	accessToken, err := s.tokens.IssueTenantAccessToken(userID, callerClaims.SID, clientID, req.TenantID.String(), roles, permissions)
	if err != nil {
		return nil, fmt.Errorf("issuing tenant-access token: %w", err)
	}

	refreshPlain, refreshHash, err := newRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	var sessionID pgtype.UUID
	if callerClaims.SID != "" {
		if sid, err := uuid.Parse(callerClaims.SID); err == nil {
			sessionID = pgtype.UUID{Bytes: sid, Valid: true}
		}
	}

	if _, err := q.CreateRefreshToken(ctx, db.CreateRefreshTokenParams{
		SessionID: sessionID,
		UserID:    pgUserID,
		TenantID:  pgTenantID,
		FamilyID:  pgtype.UUID{Bytes: uuid.New(), Valid: true},
		TokenHash: refreshHash,
		Kind:      "tenant_access",
		ExpiresAt: pgtype.Timestamptz{Time: time.Now().Add(TenantAccessRefreshTTL), Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("storing tenant-access refresh token: %w", err)
	}

	// Step 7: cache the policy decision. ResolveRoles already wrote through
	// to cache.KeyUserRoles on its own cache miss path; nothing further to
	// do here beyond leaving that memoization in place.

	return &Result{
		AccessToken:  accessToken,
		RefreshToken: refreshPlain,
		ExpiresIn:    int(TenantAccessTTL.Seconds()),
	}, nil
}

func newRefreshToken() (plain, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(plain))
	return plain, hex.EncodeToString(sum[:]), nil
}
