package middleware

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/token"
)

// contextKey is a custom type for context keys to avoid collisions.
// This prevents accidental key conflicts with other packages.
type contextKey string

// Context keys for request-scoped values.
const (
	UserIDKey    contextKey = "user_id"
	TenantIDKey  contextKey = "tenant_id"
	ServiceIDKey contextKey = "service_id"
	RolesKey     contextKey = "roles"
	PermsKey     contextKey = "permissions"
	TokenKindKey contextKey = "token_kind"
	ClaimsKey    contextKey = "claims"
)

// GetUserID safely extracts the user ID from context.
// Returns an error if the value is missing or wrong type.
func GetUserID(ctx context.Context) (uuid.UUID, error) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, fmt.Errorf("user_id not found in context")
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("user_id has wrong type: %T", val)
	}
	return id, nil
}

// GetTenantID safely extracts the tenant ID from context.
// Returns an error if the value is missing or wrong type.
func GetTenantID(ctx context.Context) (uuid.UUID, error) {
	val := ctx.Value(TenantIDKey)
	if val == nil {
		return uuid.Nil, fmt.Errorf("tenant_id not found in context")
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("tenant_id has wrong type: %T", val)
	}
	return id, nil
}

// GetServiceID safely extracts the service the current Tenant-Access Token
// is bound to.
func GetServiceID(ctx context.Context) (uuid.UUID, error) {
	val := ctx.Value(ServiceIDKey)
	if val == nil {
		return uuid.Nil, fmt.Errorf("service_id not found in context")
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("service_id has wrong type: %T", val)
	}
	return id, nil
}

// GetRoles returns the resolved role set carried by a Tenant-Access Token.
func GetRoles(ctx context.Context) []string {
	roles, _ := ctx.Value(RolesKey).([]string)
	return roles
}

// GetPermissions returns the resolved permission set carried by a
// Tenant-Access Token.
func GetPermissions(ctx context.Context) []string {
	perms, _ := ctx.Value(PermsKey).([]string)
	return perms
}

// GetTokenKind reports which of the three token shapes authenticated this
// request, so a handler can reject e.g. an Identity Token on a tenant route.
func GetTokenKind(ctx context.Context) (token.Kind, bool) {
	k, ok := ctx.Value(TokenKindKey).(token.Kind)
	return k, ok
}

// GetClaims returns the full verified claims, for handlers that need a
// field this package doesn't promote to its own key (sid, email, name).
func GetClaims(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*token.Claims)
	return c, ok
}

// MustGetUserID extracts user ID and panics if not found.
// Use only in contexts where UserID is guaranteed to be set by middleware.
func MustGetUserID(ctx context.Context) uuid.UUID {
	id, err := GetUserID(ctx)
	if err != nil {
		panic(fmt.Sprintf("CRITICAL: %v", err))
	}
	return id
}

// MustGetTenantID extracts tenant ID and panics if not found.
// Use only in contexts where TenantID is guaranteed to be set by middleware.
func MustGetTenantID(ctx context.Context) uuid.UUID {
	id, err := GetTenantID(ctx)
	if err != nil {
		panic(fmt.Sprintf("CRITICAL: %v", err))
	}
	return id
}
