package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test rsa key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func newTestService(t *testing.T, legacy ...string) *Service {
	t.Helper()
	s, err := NewService("https://auth9.test", testPEM(t), legacy)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return s
}

func TestIssueIdentityToken_VerifiesWithMatchingAudience(t *testing.T) {
	s := newTestService(t)
	userID := uuid.New()

	tok, err := s.IssueIdentityToken(userID, "sid-1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("IssueIdentityToken failed: %v", err)
	}

	claims, err := s.Verify(tok, AudienceIdentity)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.TokenType != KindIdentity || claims.Subject != userID.String() || claims.Email != "alice@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestVerify_WrongAudienceRejected(t *testing.T) {
	s := newTestService(t)
	tok, err := s.IssueIdentityToken(uuid.New(), "sid-1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("IssueIdentityToken failed: %v", err)
	}

	if _, err := s.Verify(tok, AudienceService); err != ErrWrongAudience {
		t.Errorf("expected ErrWrongAudience, got %v", err)
	}
}

func TestIssueTenantAccessToken_CarriesRolesAndPermissions(t *testing.T) {
	s := newTestService(t)
	userID := uuid.New()

	tok, err := s.IssueTenantAccessToken(userID, "sid-1", "client-123", "tenant-abc",
		[]string{"admin"}, []string{"tenant:read", "tenant:write"})
	if err != nil {
		t.Fatalf("IssueTenantAccessToken failed: %v", err)
	}

	claims, err := s.Verify(tok, "client-123")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.TokenType != KindTenantAccess || claims.TenantID != "tenant-abc" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Errorf("unexpected roles: %v", claims.Roles)
	}
	if len(claims.Permissions) != 2 {
		t.Errorf("unexpected permissions: %v", claims.Permissions)
	}
}

func TestIssueServiceClientToken_HasServiceAudience(t *testing.T) {
	s := newTestService(t)
	serviceID := uuid.New()

	tok, err := s.IssueServiceClientToken(serviceID, "tenant-abc")
	if err != nil {
		t.Fatalf("IssueServiceClientToken failed: %v", err)
	}

	claims, err := s.Verify(tok, AudienceService)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.TokenType != KindServiceClient || claims.Subject != serviceID.String() {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestVerify_ExpiredTokenRejected(t *testing.T) {
	s, err := NewService("https://auth9.test", testPEM(t), nil, WithIdentityTTL(-1*time.Minute))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	tok, err := s.IssueIdentityToken(uuid.New(), "sid-1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("IssueIdentityToken failed: %v", err)
	}

	if _, err := s.Verify(tok, AudienceIdentity); err != ErrExpiredToken {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerify_UnknownKeyRejected(t *testing.T) {
	s1 := newTestService(t)
	s2 := newTestService(t)

	tok, err := s1.IssueIdentityToken(uuid.New(), "sid-1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("IssueIdentityToken failed: %v", err)
	}

	if _, err := s2.Verify(tok, AudienceIdentity); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for a token signed by a different key ring, got %v", err)
	}
}

func TestVerify_LegacyKeyStillVerifies(t *testing.T) {
	legacyPEM := testPEM(t)
	legacyOnly, err := NewService("https://auth9.test", legacyPEM, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	tok, err := legacyOnly.IssueIdentityToken(uuid.New(), "sid-1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("IssueIdentityToken failed: %v", err)
	}

	rotated := newTestService(t, legacyPEM)
	if rotated.CurrentKid() == "sig-legacy-1" {
		t.Fatalf("test setup error: rotated service's current key should not be the legacy one")
	}

	claims, err := rotated.Verify(tok, AudienceIdentity)
	if err != nil {
		t.Fatalf("expected a token signed by a retained legacy key to still verify, got: %v", err)
	}
	if claims.Subject == "" {
		t.Errorf("unexpected empty subject")
	}
}

func TestVerifyAnyAudience_SkipsAudienceCheck(t *testing.T) {
	s := newTestService(t)
	tok, err := s.IssueTenantAccessToken(uuid.New(), "sid-1", "some-client", "tenant-abc", nil, nil)
	if err != nil {
		t.Fatalf("IssueTenantAccessToken failed: %v", err)
	}

	if _, err := s.VerifyAnyAudience(tok); err != nil {
		t.Errorf("VerifyAnyAudience should not care about audience, got: %v", err)
	}
}

func TestJWKS_ListsEveryKeyCurrentFirst(t *testing.T) {
	legacyPEM := testPEM(t)
	s := newTestService(t, legacyPEM)

	jwks := s.JWKS()
	if len(jwks.Keys) != 2 {
		t.Fatalf("expected 2 keys in the ring, got %d", len(jwks.Keys))
	}
	if jwks.Keys[0].Kid != s.CurrentKid() {
		t.Errorf("expected current key first, got kid %q", jwks.Keys[0].Kid)
	}
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || k.Alg != "RS256" || k.N == "" || k.E == "" {
			t.Errorf("malformed jwk: %+v", k)
		}
	}
}

func TestNewService_InvalidPEMFails(t *testing.T) {
	if _, err := NewService("https://auth9.test", "not a pem", nil); err == nil {
		t.Error("expected error for invalid PEM, got nil")
	}
}
