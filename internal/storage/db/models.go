package db

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type Tenant struct {
	ID                pgtype.UUID
	Slug              string
	DisplayName       string
	Status            string
	OwningEmailDomain pgtype.Text
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

type User struct {
	ID            pgtype.UUID
	UpstreamSub   string
	Email         string
	DisplayName   pgtype.Text
	MfaEnabled    bool
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type TenantMembership struct {
	TenantID  pgtype.UUID
	UserID    pgtype.UUID
	Role      string
	JoinedAt  pgtype.Timestamptz
}

type Service struct {
	ID           pgtype.UUID
	TenantID     pgtype.UUID // invalid ⇒ global service
	DisplayName  string
	BaseUrl      string
	RedirectUris []string
	LogoutUris   []string
	Status       string
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

type TenantService struct {
	TenantID  pgtype.UUID
	ServiceID pgtype.UUID
	Enabled   bool
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Client struct {
	ID           pgtype.UUID
	ServiceID    pgtype.UUID
	ClientID     string
	SecretHash   pgtype.Text
	Confidential bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

type Role struct {
	ID        pgtype.UUID
	ServiceID pgtype.UUID
	Name      string
	ParentID  pgtype.UUID
	CreatedAt pgtype.Timestamptz
}

type Permission struct {
	ID        pgtype.UUID
	ServiceID pgtype.UUID
	Code      string
	CreatedAt pgtype.Timestamptz
}

type RolePermission struct {
	RoleID       pgtype.UUID
	PermissionID pgtype.UUID
}

type UserTenantRole struct {
	TenantID  pgtype.UUID
	UserID    pgtype.UUID
	RoleID    pgtype.UUID
	CreatedAt pgtype.Timestamptz
}

type PolicySet struct {
	ID        pgtype.UUID
	TenantID  pgtype.UUID
	Name      string
	Mode      string // disabled | shadow | enforce
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type PolicySetVersion struct {
	ID         pgtype.UUID
	PolicySetID pgtype.UUID
	Version    int32
	Status     string // draft | published | archived
	Document   json.RawMessage
	ChangeNote pgtype.Text
	CreatedAt  pgtype.Timestamptz
}

type Session struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	Device       pgtype.Text
	IpAddress    pgtype.Text
	Location     pgtype.Text
	CreatedAt    pgtype.Timestamptz
	LastActiveAt pgtype.Timestamptz
	RevokedAt    pgtype.Timestamptz
}

type LoginEvent struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	Email     string
	EventType string
	IpAddress pgtype.Text
	Device    pgtype.Text
	Reason    pgtype.Text
	OccurredAt pgtype.Timestamptz
}

type SecurityAlert struct {
	ID         pgtype.UUID
	TenantID   pgtype.UUID
	UserID     pgtype.UUID
	AlertType  string
	Severity   string
	Details    json.RawMessage
	ResolvedAt pgtype.Timestamptz
	ResolvedBy pgtype.UUID
	CreatedAt  pgtype.Timestamptz
}

type SsoConnector struct {
	ID            pgtype.UUID
	TenantID      pgtype.UUID
	Alias         string
	ProviderType  string // saml | oidc
	Enabled       bool
	UpstreamAlias string
	Config        json.RawMessage
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type SsoDomain struct {
	ID          pgtype.UUID
	ConnectorID pgtype.UUID
	Domain      string
}

type WebauthnCredential struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	CredentialID []byte
	PublicKey    []byte
	Label        pgtype.Text
	Aaguid       pgtype.Text
	SignCount    int64
	CreatedAt    pgtype.Timestamptz
	LastUsedAt   pgtype.Timestamptz
}

type Action struct {
	ID             pgtype.UUID
	TenantID       pgtype.UUID
	Name           string
	Trigger        string
	Script         string
	Enabled        bool
	ExecutionOrder int32
	TimeoutMs      int32
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

type ActionExecution struct {
	ID         pgtype.UUID
	ActionID   pgtype.UUID
	Success    bool
	DurationMs int64
	ErrMessage pgtype.Text
	Console    pgtype.Text
	RanAt      pgtype.Timestamptz
}

// PlatformSetting is a generically-scoped named JSON document: tenant
// branding/password-policy, service branding/integration config, and
// system-wide email/branding/template settings all share this one table
// instead of a dedicated column per concern, the same "named JSON
// document" shape internal/policy already uses for rule sets.
type PlatformSetting struct {
	ScopeType string // "tenant" | "service" | "platform"
	ScopeID   pgtype.UUID
	Key       string
	Value     json.RawMessage
	UpdatedAt pgtype.Timestamptz
}

// RefreshToken backs the Tenant-Access refresh tokens minted by the exchange
// service. The OIDC refresh grant is delegated to the upstream IdP and
// writes no row here; Kind records which kind of token a row is.
type RefreshToken struct {
	ID        pgtype.UUID
	SessionID pgtype.UUID
	UserID    pgtype.UUID
	TenantID  pgtype.UUID
	FamilyID  pgtype.UUID
	TokenHash string
	Kind      string // "identity" | "tenant_access"
	IsRevoked bool
	RevokedAt pgtype.Timestamptz
	ExpiresAt pgtype.Timestamptz
	IpAddress pgtype.Text
	UserAgent pgtype.Text
	CreatedAt pgtype.Timestamptz
}

// UserMFASecret holds a user's TOTP secret and remaining hashed backup
// codes; presence of a row is independent of User.MfaEnabled so a user can
// enroll a secret before confirming the first code and flipping the flag.
type UserMFASecret struct {
	UserID      pgtype.UUID
	Secret      string
	BackupCodes []string // bcrypt hashes, one consumed per successful recovery
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// timeOrZero converts a pgtype.Timestamptz to a plain time.Time, zero value
// if not valid. Handy in business logic that doesn't want to sprinkle
// .Time everywhere.
func timeOrZero(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}
