package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// KeycloakSource polls Keycloak's admin REST API for login events
// (GET /admin/realms/{realm}/events), the same endpoint the Keycloak admin
// console itself charts. It authenticates with the admin service-account
// password grant and caches the resulting bearer token until it is close
// to expiry, mirroring how the OIDC façade treats its own upstream token
// exchange as a short-lived credential rather than a per-call login.
type KeycloakSource struct {
	baseURL  string // e.g. https://idp.example.com
	realm    string
	username string
	password string
	clientID string

	http *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	sinceMu sync.Mutex
	since   time.Time
}

func NewKeycloakSource(baseURL, realm, username, password, clientID string) *KeycloakSource {
	return &KeycloakSource{
		baseURL:  baseURL,
		realm:    realm,
		username: username,
		password: password,
		clientID: clientID,
		http:     &http.Client{Timeout: 10 * time.Second},
		since:    time.Now().Add(-time.Minute),
	}
}

type keycloakEvent struct {
	Time      int64             `json:"time"` // epoch millis
	Type      string            `json:"type"`
	RealmID   string            `json:"realmId"`
	IPAddress string            `json:"ipAddress"`
	Details   map[string]string `json:"details"`
}

// Poll satisfies Source: it fetches the realm's login events from the
// watermark's calendar day onward (dateFrom has day granularity, so events
// already returned earlier that day come back again and are left to the
// Consumer's duplicate check), maps Keycloak's event type vocabulary onto
// UpstreamEventType, and drops types this system doesn't track. The
// watermark advances to the newest event time seen, tracked type or not.
func (k *KeycloakSource) Poll(ctx context.Context) ([]UpstreamEvent, error) {
	token, err := k.adminToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("keycloak admin token: %w", err)
	}

	k.sinceMu.Lock()
	since := k.since
	k.sinceMu.Unlock()

	q := url.Values{}
	q.Set("dateFrom", since.UTC().Format("2006-01-02"))
	q.Set("max", "200")
	endpoint := fmt.Sprintf("%s/admin/realms/%s/events?%s", k.baseURL, k.realm, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keycloak events: unexpected status %d", resp.StatusCode)
	}

	var raw []keycloakEvent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]UpstreamEvent, 0, len(raw))
	newest := since
	for _, ev := range raw {
		occurred := time.UnixMilli(ev.Time).UTC()
		if occurred.After(newest) {
			newest = occurred
		}
		t, ok := mapKeycloakEventType(ev.Type)
		if !ok {
			continue
		}
		out = append(out, UpstreamEvent{
			OccurredAt: occurred,
			Realm:      ev.RealmID,
			Email:      ev.Details["username"],
			Type:       t,
			IP:         ev.IPAddress,
			Device:     ev.Details["user_agent"],
			Reason:     ev.Details["error"],
		})
	}

	k.sinceMu.Lock()
	if newest.After(k.since) {
		k.since = newest
	}
	k.sinceMu.Unlock()

	return out, nil
}

func mapKeycloakEventType(t string) (UpstreamEventType, bool) {
	switch t {
	case "LOGIN_ERROR":
		return UpstreamFailedPassword, true
	case "LOGIN_ERROR_INVALID_OTP", "LOGIN_ERROR_OTP_REQUIRED":
		return UpstreamFailedMFA, true
	case "LOGIN_ERROR_ACCOUNT_DISABLED", "LOGIN_ERROR_TEMPORARILY_DISABLED":
		return UpstreamLocked, true
	default:
		return "", false
	}
}

func (k *KeycloakSource) adminToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.token != "" && time.Now().Before(k.tokenExpiry) {
		return k.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", k.clientID)
	form.Set("username", k.username)
	form.Set("password", k.password)

	endpoint := fmt.Sprintf("%s/realms/master/protocol/openid-connect/token", k.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("keycloak admin login: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	k.token = body.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second / 2)
	return k.token, nil
}

