package webauthn

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	gowebauthn "github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"

	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/storage/db"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Engine{
		wa:    nil,
		cache: cache.NewFromClient(rdb),
		pool:  nil,
	}
}

func TestWebauthnUser_IdentityMethods(t *testing.T) {
	id := uuid.New()
	u := &webauthnUser{
		user: db.User{
			ID:          pgtype.UUID{Bytes: id, Valid: true},
			Email:       "alice@example.com",
			DisplayName: pgtype.Text{String: "Alice", Valid: true},
		},
		credentials: []gowebauthn.Credential{{ID: []byte("cred-1")}},
	}

	if string(u.WebAuthnID()) != string(id[:]) {
		t.Errorf("WebAuthnID mismatch")
	}
	if u.WebAuthnName() != "alice@example.com" {
		t.Errorf("unexpected WebAuthnName: %s", u.WebAuthnName())
	}
	if u.WebAuthnDisplayName() != "Alice" {
		t.Errorf("unexpected WebAuthnDisplayName: %s", u.WebAuthnDisplayName())
	}
	if len(u.WebAuthnCredentials()) != 1 {
		t.Errorf("expected 1 credential, got %d", len(u.WebAuthnCredentials()))
	}
	if u.WebAuthnIcon() != "" {
		t.Errorf("expected empty icon, got %q", u.WebAuthnIcon())
	}
}

func TestWebauthnUser_DisplayNameFallsBackToEmail(t *testing.T) {
	u := &webauthnUser{
		user: db.User{Email: "bob@example.com"},
	}
	if u.WebAuthnDisplayName() != "bob@example.com" {
		t.Errorf("expected fallback to email, got %q", u.WebAuthnDisplayName())
	}
}

func TestStoreLoadSession_RoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sd := &gowebauthn.SessionData{
		Challenge: "chal-1",
		UserID:    []byte("user-1"),
	}

	if err := e.storeSession(ctx, "webauthn:reg:user-1", sd); err != nil {
		t.Fatalf("storeSession failed: %v", err)
	}

	got, err := e.loadSession(ctx, "webauthn:reg:user-1")
	if err != nil {
		t.Fatalf("loadSession failed: %v", err)
	}
	if got.Challenge != sd.Challenge || string(got.UserID) != string(sd.UserID) {
		t.Errorf("round-tripped session data mismatch: got %+v, want %+v", got, sd)
	}
}

func TestLoadSession_MissingKeyReturnsChallengeExpired(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.loadSession(context.Background(), "webauthn:reg:never-set")
	if err != ErrChallengeExpired {
		t.Errorf("expected ErrChallengeExpired, got %v", err)
	}
}
