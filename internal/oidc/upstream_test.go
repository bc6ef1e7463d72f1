package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func unverifiedIDToken(t *testing.T, claims upstreamClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing unverified test token: %v", err)
	}
	return s
}

func TestParseUpstreamIdentity_ReadsClaims(t *testing.T) {
	idToken := unverifiedIDToken(t, upstreamClaims{
		Sub:   "upstream-sub-1",
		Email: "alice@example.com",
		Name:  "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := parseUpstreamIdentity(idToken)
	if err != nil {
		t.Fatalf("parseUpstreamIdentity failed: %v", err)
	}
	if claims.Sub != "upstream-sub-1" || claims.Email != "alice@example.com" || claims.Name != "Alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseUpstreamIdentity_MissingSubOrEmailRejected(t *testing.T) {
	idToken := unverifiedIDToken(t, upstreamClaims{Email: "alice@example.com"})
	if _, err := parseUpstreamIdentity(idToken); err == nil {
		t.Error("expected an error for a token missing sub")
	}

	idToken = unverifiedIDToken(t, upstreamClaims{Sub: "upstream-sub-1"})
	if _, err := parseUpstreamIdentity(idToken); err == nil {
		t.Error("expected an error for a token missing email")
	}
}

func TestParseUpstreamIdentity_GarbageRejected(t *testing.T) {
	if _, err := parseUpstreamIdentity("not-a-jwt"); err == nil {
		t.Error("expected an error for a malformed token")
	}
}

func TestPostToken_DecodesUpstreamResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","id_token":"idt-1","expires_in":60}`))
	}))
	defer srv.Close()

	f := &Facade{cfg: Config{UpstreamTokenURL: srv.URL}, http: &http.Client{}}

	toks, err := f.postToken(context.Background(), url.Values{"grant_type": {"authorization_code"}})
	if err != nil {
		t.Fatalf("postToken failed: %v", err)
	}
	if toks.AccessToken != "at-1" || toks.RefreshToken != "rt-1" || toks.IDToken != "idt-1" || toks.ExpiresIn != 60 {
		t.Errorf("unexpected decoded tokens: %+v", toks)
	}
}

func TestPostToken_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	f := &Facade{cfg: Config{UpstreamTokenURL: srv.URL}, http: &http.Client{}}

	if _, err := f.postToken(context.Background(), url.Values{}); err == nil {
		t.Error("expected an error for a non-200 upstream response")
	}
}
