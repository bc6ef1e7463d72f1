package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/auth9/auth9/internal/token"
)

func testTokenService(t *testing.T) *token.Service {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test rsa key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	svc, err := token.NewService("https://auth9.test", string(pem.EncodeToMemory(block)), nil)
	if err != nil {
		t.Fatalf("token.NewService failed: %v", err)
	}
	return svc
}

func TestWellKnownConfiguration_PointsAtOwnEndpoints(t *testing.T) {
	f := &Facade{cfg: Config{Issuer: "https://auth9.test"}, tokens: testTokenService(t)}

	d := f.WellKnownConfiguration("https://auth9.test/api/v1")
	if d.Issuer != "https://auth9.test" {
		t.Errorf("unexpected issuer: %s", d.Issuer)
	}
	if d.AuthorizationEndpoint != "https://auth9.test/api/v1/auth/authorize" {
		t.Errorf("unexpected authorization_endpoint: %s", d.AuthorizationEndpoint)
	}
	if d.TokenEndpoint != "https://auth9.test/api/v1/auth/token" {
		t.Errorf("unexpected token_endpoint: %s", d.TokenEndpoint)
	}
	if d.JWKSURI != "https://auth9.test/api/v1/.well-known/jwks.json" {
		t.Errorf("unexpected jwks_uri: %s", d.JWKSURI)
	}
	if len(d.ResponseTypesSupported) != 1 || d.ResponseTypesSupported[0] != "code" {
		t.Errorf("unexpected response_types_supported: %v", d.ResponseTypesSupported)
	}
}

func TestJWKS_DelegatesToTokenService(t *testing.T) {
	tokens := testTokenService(t)
	f := &Facade{tokens: tokens}

	jwks := f.JWKS()
	if len(jwks.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(jwks.Keys))
	}
	if jwks.Keys[0].Kid != tokens.CurrentKid() {
		t.Errorf("expected delegated JWKS to match the token service's current key, got %q want %q",
			jwks.Keys[0].Kid, tokens.CurrentKid())
	}
}
