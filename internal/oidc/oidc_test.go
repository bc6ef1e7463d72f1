package oidc

import (
	"context"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/auth9/auth9/internal/cache"
)

func newTestFacade(t *testing.T, cfg Config) *Facade {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Facade{cfg: cfg, cache: cache.NewFromClient(rdb)}
}

func TestKeyState_And_KeyLoginCode_Namespaced(t *testing.T) {
	if got, want := keyState("abc"), "oidc:state:abc"; got != want {
		t.Errorf("keyState = %q, want %q", got, want)
	}
	if got, want := keyLoginCode("xyz"), "oidc:login_code:xyz"; got != want {
		t.Errorf("keyLoginCode = %q, want %q", got, want)
	}
}

func TestDomainOf(t *testing.T) {
	cases := []struct {
		email string
		want  string
		ok    bool
	}{
		{"alice@example.com", "example.com", true},
		{"bob@sub.example.com", "sub.example.com", true},
		{"no-at-sign", "", false},
		{"@example.com", "", false},
		{"alice@", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := domainOf(c.email)
		if got != c.want || ok != c.ok {
			t.Errorf("domainOf(%q) = (%q, %v), want (%q, %v)", c.email, got, ok, c.want, c.ok)
		}
	}
}

func TestBuildAuthorizeURL_WithoutConnector(t *testing.T) {
	f := newTestFacade(t, Config{
		ClientID:             "auth9-portal",
		RedirectURI:          "https://auth9.test/callback",
		UpstreamAuthorizeURL: "https://idp.test/realms/auth9/protocol/openid-connect/auth",
	})

	raw := f.buildAuthorizeURL("state-123", "")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid authorize URL: %v", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "auth9-portal" || q.Get("state") != "state-123" {
		t.Errorf("unexpected query values: %v", q)
	}
	if q.Get("kc_idp_hint") != "" {
		t.Errorf("expected no kc_idp_hint without a connector alias, got %q", q.Get("kc_idp_hint"))
	}
}

func TestBuildAuthorizeURL_WithConnectorSetsIdpHint(t *testing.T) {
	f := newTestFacade(t, Config{
		ClientID:             "auth9-portal",
		UpstreamAuthorizeURL: "https://idp.test/realms/auth9/protocol/openid-connect/auth",
	})

	raw := f.buildAuthorizeURL("state-123", "corp-saml")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid authorize URL: %v", err)
	}
	if got := u.Query().Get("kc_idp_hint"); got != "corp-saml" {
		t.Errorf("expected kc_idp_hint=corp-saml, got %q", got)
	}
}

func TestAuthorize_PersistsStateAndReturnsIt(t *testing.T) {
	f := newTestFacade(t, Config{
		ClientID:             "auth9-portal",
		UpstreamAuthorizeURL: "https://idp.test/realms/auth9/protocol/openid-connect/auth",
	})

	authorizeURL, state, err := f.Authorize(context.Background(), "")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if state == "" {
		t.Fatal("expected a non-empty state value")
	}

	ok, err := f.cache.Exists(context.Background(), keyState(state))
	if err != nil {
		t.Fatalf("checking cache: %v", err)
	}
	if !ok {
		t.Error("expected the returned state to be persisted in the cache")
	}
	u, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatalf("invalid authorize URL: %v", err)
	}
	if u.Query().Get("state") != state {
		t.Errorf("authorize URL state %q does not match returned state %q", u.Query().Get("state"), state)
	}
}
