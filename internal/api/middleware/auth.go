package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/config"
	"github.com/auth9/auth9/internal/storage/db"
	"github.com/auth9/auth9/internal/token"
)

// PlatformAdminChecker answers "does this identity hold platform-admin
// privilege", per §4.2: either a configured platform-admin email, or an
// admin role in the reserved auth9-platform tenant.
type PlatformAdminChecker struct {
	Config  config.Config
	Queries *db.Queries
}

func (c PlatformAdminChecker) IsPlatformAdmin(ctx context.Context, userID uuid.UUID, email string) bool {
	if c.Config.IsPlatformAdminEmail(email) {
		return true
	}
	platform, err := c.Queries.GetTenantBySlug(ctx, "auth9-platform")
	if err != nil {
		return false
	}
	m, err := c.Queries.GetMembership(ctx, platform.ID, pgtype.UUID{Bytes: userID, Valid: userID != uuid.Nil})
	if err != nil {
		return false
	}
	return m.Role == "admin"
}

// RequireAuth implements §4.2's pipeline: extract bearer token, verify it
// against expectedAudience, consult the revocation store by sid, and attach
// the decoded principal to the request context. It never classifies or
// applies route policy beyond revocation — that's RequireTenantAccess /
// RequirePlatformAdmin (and RequirePermission / RequireABAC), layered on top.
func RequireAuth(tokens *token.Service, c *cache.Store, expectedAudience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				helpers.RespondAppError(w, apperr.New(apperr.KindUnauthorized, "missing_bearer_token", "MISSING_BEARER_TOKEN", "Authorization bearer token required"))
				return
			}

			var claims *token.Claims
			var err error
			if expectedAudience == "" {
				// Tenant-Access Tokens carry a per-service client-id
				// audience chosen at mint time — routes reachable by any
				// token kind (tenant scope, system scope) skip the
				// audience check here and rely on RequireTenantAccess /
				// RequirePlatformAdmin for the real authorization decision.
				claims, err = tokens.VerifyAnyAudience(parts[1])
			} else {
				claims, err = tokens.Verify(parts[1], expectedAudience)
			}
			if err != nil {
				slog.Warn("token_verify_failed", "error", err, "ip", r.RemoteAddr)
				helpers.RespondAppError(w, apperr.ErrTokenInvalid)
				return
			}

			revoked, err := checkRevocationWithRetry(r.Context(), c, claims.SID)
			if err != nil {
				slog.Error("revocation_store_unreachable", "error", err, "sid", claims.SID)
				helpers.RespondAppError(w, apperr.ErrRevocationStoreUnavailable)
				return
			}
			if revoked {
				helpers.RespondAppError(w, apperr.ErrTokenRevoked)
				return
			}

			ctx := withPrincipal(r.Context(), claims)
			SetSentryUser(ctx, claims.Subject, claims.Email, r.RemoteAddr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkRevocationWithRetry retries the revocation lookup once on
// infrastructure error before surfacing unavailability — §4.2 step 3.
func checkRevocationWithRetry(ctx context.Context, c *cache.Store, sid string) (bool, error) {
	revoked, err := c.IsRevoked(ctx, sid)
	if err == nil {
		return revoked, nil
	}
	return c.IsRevoked(ctx, sid)
}

func withPrincipal(ctx context.Context, claims *token.Claims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	ctx = context.WithValue(ctx, TokenKindKey, claims.TokenType)
	if uid, err := uuid.Parse(claims.Subject); err == nil {
		ctx = context.WithValue(ctx, UserIDKey, uid)
	}
	if claims.TenantID != "" {
		if tid, err := uuid.Parse(claims.TenantID); err == nil {
			ctx = context.WithValue(ctx, TenantIDKey, tid)
		}
	}
	ctx = context.WithValue(ctx, RolesKey, claims.Roles)
	ctx = context.WithValue(ctx, PermsKey, claims.Permissions)
	return ctx
}

// RequireTenantAccess enforces §4.2 step 5's Tenant-Access Token policy: the
// path's {id} must equal the token's bound tenant, unless the caller is a
// platform admin. Must run after RequireAuth and a route that captures a
// tenantID path param via pathTenantID.
func RequireTenantAccess(admin PlatformAdminChecker, pathTenantID func(*http.Request) (uuid.UUID, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := GetClaims(r.Context())
			if claims == nil {
				helpers.RespondAppError(w, apperr.ErrTokenInvalid)
				return
			}

			if claims.TokenType == token.KindIdentity {
				helpers.RespondAppError(w, apperr.ErrIdentityTokenNotAllowed)
				return
			}

			if reqTenantID, ok := pathTenantID(r); ok {
				boundTenantID, _ := GetTenantID(r.Context())
				if reqTenantID != boundTenantID {
					userID, _ := GetUserID(r.Context())
					if !admin.IsPlatformAdmin(r.Context(), userID, claims.Email) {
						helpers.RespondAppError(w, apperr.ErrCrossTenant)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentityWhitelist confines an Identity Token to the fixed allow-list
// from §4.2 step 5 by simply being the only middleware applied to those
// routes — routes outside the whitelist instead wrap with RequireTenantAccess,
// which itself rejects KindIdentity outright. This helper exists for routes
// (users/me/*, GET /tenants, token-exchange) that accept *either* an
// Identity Token or a Tenant-Access Token and need no further scoping.
func RequireIdentityWhitelist(next http.Handler) http.Handler {
	return next
}

// RequirePlatformAdmin enforces §4.2 step 5's system-scope rule: all
// /system/* endpoints require platform admin, regardless of token kind.
func RequirePlatformAdmin(admin PlatformAdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := GetClaims(r.Context())
			if claims == nil {
				helpers.RespondAppError(w, apperr.ErrTokenInvalid)
				return
			}
			userID, _ := GetUserID(r.Context())
			if !admin.IsPlatformAdmin(r.Context(), userID, claims.Email) {
				helpers.RespondAppError(w, apperr.ErrPlatformAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
