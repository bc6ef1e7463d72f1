package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMapKeycloakEventType(t *testing.T) {
	cases := []struct {
		in     string
		want   UpstreamEventType
		wantOK bool
	}{
		{"LOGIN_ERROR", UpstreamFailedPassword, true},
		{"LOGIN_ERROR_INVALID_OTP", UpstreamFailedMFA, true},
		{"LOGIN_ERROR_OTP_REQUIRED", UpstreamFailedMFA, true},
		{"LOGIN_ERROR_ACCOUNT_DISABLED", UpstreamLocked, true},
		{"LOGIN_ERROR_TEMPORARILY_DISABLED", UpstreamLocked, true},
		{"LOGIN", "", false},
		{"REGISTER", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := mapKeycloakEventType(c.in)
		if ok != c.wantOK || got != c.want {
			t.Errorf("mapKeycloakEventType(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.wantOK)
		}
	}
}

func TestKeycloakSource_Poll_MapsAndAdvancesWatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/realms/master/protocol/openid-connect/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 60})
		case r.URL.Path == "/admin/realms/auth9/events":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode([]map[string]any{
				{
					"time":    1700000000000,
					"type":    "LOGIN_ERROR",
					"realmId": "auth9",
					"ipAddress": "10.0.0.1",
					"details": map[string]string{"username": "alice@example.com", "error": "invalid_user_credentials"},
				},
				{
					"time":    1700000001000,
					"type":    "LOGIN",
					"realmId": "auth9",
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	source := NewKeycloakSource(srv.URL, "auth9", "admin", "secret", "admin-cli")
	// Start the watermark before both fixture events so the poll can move it.
	source.since = time.UnixMilli(1699999990000).UTC()

	events, err := source.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 mapped event (LOGIN has no mapping), got %d", len(events))
	}
	ev := events[0]
	if ev.Type != UpstreamFailedPassword || ev.Email != "alice@example.com" || ev.IP != "10.0.0.1" {
		t.Errorf("unexpected mapped event: %+v", ev)
	}

	source.sinceMu.Lock()
	since := source.since
	source.sinceMu.Unlock()
	wantSince := time.UnixMilli(1700000001000).UTC()
	if !since.Equal(wantSince) {
		t.Errorf("watermark should advance to the newest event's time even when unmapped, got %v want %v", since, wantSince)
	}
}

func TestKeycloakSource_AdminToken_CachesUntilExpiry(t *testing.T) {
	var tokenRequests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "cached-tok", "expires_in": 3600})
	}))
	defer srv.Close()

	source := NewKeycloakSource(srv.URL, "auth9", "admin", "secret", "admin-cli")

	tok1, err := source.adminToken(context.Background())
	if err != nil {
		t.Fatalf("adminToken: %v", err)
	}
	tok2, err := source.adminToken(context.Background())
	if err != nil {
		t.Fatalf("adminToken: %v", err)
	}
	if tok1 != "cached-tok" || tok2 != "cached-tok" {
		t.Errorf("expected cached token on both calls, got %q then %q", tok1, tok2)
	}
	if tokenRequests != 1 {
		t.Errorf("expected exactly one token request while within half the expiry window, got %d", tokenRequests)
	}
}
