// Package token is the Key & JWT Service: it holds an ordered ring of RSA
// signing keys and mints/verifies the three token shapes the rest of the
// system deals in. Adapted from the teacher's internal/auth/token.go,
// generalized from a single hardcoded key to a rotating key ring and from
// one claims shape to three (Identity, Tenant-Access, Service-Client).
package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrUnknownKey    = errors.New("unknown signing key")
	ErrWrongAudience = errors.New("unexpected audience for token type")
)

// Kind distinguishes the three token shapes minted by this service.
type Kind string

const (
	KindIdentity      Kind = "identity"
	KindTenantAccess  Kind = "tenant_access"
	KindServiceClient Kind = "service"

	AudienceIdentity = "auth9"
	AudienceService  = "auth9-service"

	MaxClockSkew = 60 * time.Second
)

// Claims is the union of every claim any of the three token kinds may
// carry; unused fields are simply omitted from the marshaled JSON.
type Claims struct {
	TokenType   Kind     `json:"token_type"`
	SID         string   `json:"sid,omitempty"`
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	TenantID    string   `json:"tenant_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

type signingKey struct {
	kid     string
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// Service holds an ordered key ring; keys[0] is current (used for signing),
// the rest are retained for verification only (rotation).
type Service struct {
	keys   []signingKey
	issuer string

	identityTTL     time.Duration
	tenantAccessTTL time.Duration
	serviceTTL      time.Duration
}

type Option func(*Service)

func WithIdentityTTL(d time.Duration) Option     { return func(s *Service) { s.identityTTL = d } }
func WithTenantAccessTTL(d time.Duration) Option { return func(s *Service) { s.tenantAccessTTL = d } }
func WithServiceTTL(d time.Duration) Option      { return func(s *Service) { s.serviceTTL = d } }

// NewService builds the key ring from one current PEM-encoded RSA private
// key and zero or more legacy keys kept for verification only.
func NewService(issuer string, currentPEM string, legacyPEMs []string, opts ...Option) (*Service, error) {
	cur, err := parseKey("sig-1", currentPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing current signing key: %w", err)
	}
	s := &Service{
		keys:            []signingKey{cur},
		issuer:          issuer,
		identityTTL:     60 * time.Minute,
		tenantAccessTTL: 60 * time.Minute,
		serviceTTL:      60 * time.Minute,
	}
	for i, pemStr := range legacyPEMs {
		k, err := parseKey(fmt.Sprintf("sig-legacy-%d", i+1), pemStr)
		if err != nil {
			return nil, fmt.Errorf("parsing legacy signing key %d: %w", i, err)
		}
		s.keys = append(s.keys, k)
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func parseKey(kid, pemStr string) (signingKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return signingKey{}, errors.New("failed to parse PEM block containing the private key")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return signingKey{}, fmt.Errorf("failed to parse private key: %v | %v", err, err2)
		}
		var ok bool
		priv, ok = key.(*rsa.PrivateKey)
		if !ok {
			return signingKey{}, errors.New("key is not of type *rsa.PrivateKey")
		}
	}
	return signingKey{kid: kid, private: priv, public: &priv.PublicKey}, nil
}

func (s *Service) current() signingKey { return s.keys[0] }

func (s *Service) byKid(kid string) (signingKey, bool) {
	for _, k := range s.keys {
		if k.kid == kid {
			return k, true
		}
	}
	return signingKey{}, false
}

func (s *Service) sign(claims Claims) (string, error) {
	cur := s.current()
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = cur.kid
	return t.SignedString(cur.private)
}

// IssueIdentityToken mints an Identity Token: aud="auth9", short-lived,
// carrying sub/sid/email/name.
func (s *Service) IssueIdentityToken(userID uuid.UUID, sid, email, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: KindIdentity,
		SID:       sid,
		Email:     email,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{AudienceIdentity},
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.identityTTL)),
		},
	}
	return s.sign(claims)
}

// IssueTenantAccessToken mints a Tenant-Access Token bound to a service's
// client-id, copying sid from the originating Identity Token.
func (s *Service) IssueTenantAccessToken(userID uuid.UUID, sid, clientID, tenantID string, roles, permissions []string) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType:   KindTenantAccess,
		SID:         sid,
		TenantID:    tenantID,
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{clientID},
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tenantAccessTTL)),
		},
	}
	return s.sign(claims)
}

// IssueServiceClientToken mints a machine-to-machine token for
// client_credentials grants: aud="auth9-service", sub=service-id.
func (s *Service) IssueServiceClientToken(serviceID uuid.UUID, tenantID string) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: KindServiceClient,
		TenantID:  tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serviceID.String(),
			Audience:  jwt.ClaimStrings{AudienceService},
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.serviceTTL)),
		},
	}
	return s.sign(claims)
}

// Verify parses tokenString, checks alg/iss/exp/iat skew, and validates that
// the audience contains expectedAudience. Callers pass the audience they
// expect for the context they're authorizing (e.g. AudienceIdentity for the
// whitelist, or the target service's client-id for tenant routes).
func (s *Service) Verify(tokenString string, expectedAudience string) (*Claims, error) {
	var usedKid string
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		usedKid = kid
		k, ok := s.byKid(kid)
		if !ok {
			return nil, ErrUnknownKey
		}
		return k.public, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithLeeway(MaxClockSkew))
	_ = usedKid

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if !audienceContains(claims.Audience, expectedAudience) {
		return nil, ErrWrongAudience
	}

	return claims, nil
}

// VerifyAnyAudience parses and validates tokenString exactly like Verify but
// skips the audience check, for callers that only need to introspect a
// token's claims without knowing which of the three audiences to expect
// (e.g. a Tenant-Access Token's audience is a per-service client-id chosen
// at mint time, not one of the two fixed audiences).
func (s *Service) VerifyAnyAudience(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		k, ok := s.byKid(kid)
		if !ok {
			return nil, ErrUnknownKey
		}
		return k.public, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithLeeway(MaxClockSkew))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func audienceContains(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}

// JWKS returns the public half of every key in the ring, current key first.
func (s *Service) JWKS() JWKS {
	out := JWKS{Keys: make([]JWK, 0, len(s.keys))}
	for _, k := range s.keys {
		eBuf := big.NewInt(int64(k.public.E)).Bytes()
		out.Keys = append(out.Keys, JWK{
			Kty: "RSA",
			Kid: k.kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(k.public.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(eBuf),
			Alg: "RS256",
		})
	}
	return out
}

// CurrentKid returns the kid of the signing key currently in use, for
// diagnostics and for the "current" marker in cmd/keygen output.
func (s *Service) CurrentKid() string { return s.current().kid }

// IdentityTTL returns the configured lifetime of an Identity Token, for
// callers that need to report expires_in alongside the token itself.
func (s *Service) IdentityTTL() time.Duration { return s.identityTTL }

// TenantAccessTTL returns the configured lifetime of a Tenant-Access Token.
func (s *Service) TenantAccessTTL() time.Duration { return s.tenantAccessTTL }

// ServiceTTL returns the configured lifetime of a Service-Client Token.
func (s *Service) ServiceTTL() time.Duration { return s.serviceTTL }
