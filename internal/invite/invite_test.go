package invite

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/crypto"
)

func testIssuer(t *testing.T) *Issuer {
	t.Helper()
	key, err := crypto.DecodeHexKey("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"[:64])
	if err != nil {
		t.Fatalf("decoding test key: %v", err)
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	return NewIssuer(enc)
}

func TestIssueParse_RoundTrip(t *testing.T) {
	issuer := testIssuer(t)
	p := Payload{
		TenantID:  uuid.New(),
		Email:     "alice@example.com",
		Role:      "member",
		InvitedBy: uuid.New(),
	}

	tok, err := issuer.Issue(p)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := issuer.Parse(tok)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got.TenantID != p.TenantID || got.Email != p.Email || got.Role != p.Role || got.InvitedBy != p.InvitedBy {
		t.Errorf("round-tripped payload mismatch: got %+v, want %+v", got, p)
	}
	if got.ExpiresAt.IsZero() {
		t.Error("expected a default ExpiresAt to be filled in")
	}
}

func TestIssue_DefaultsExpiryWhenUnset(t *testing.T) {
	issuer := testIssuer(t)
	before := time.Now().Add(defaultTTL)

	tok, err := issuer.Issue(Payload{TenantID: uuid.New(), Email: "bob@example.com", Role: "admin"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	got, err := issuer.Parse(tok)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got.ExpiresAt.Before(before.Add(-time.Minute)) {
		t.Errorf("expected ExpiresAt near now+defaultTTL, got %v", got.ExpiresAt)
	}
}

func TestParse_ExpiredTokenRejected(t *testing.T) {
	issuer := testIssuer(t)
	p := Payload{
		TenantID:  uuid.New(),
		Email:     "alice@example.com",
		Role:      "member",
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	tok, err := issuer.Issue(p)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = issuer.Parse(tok)
	assertInvalidInvitation(t, err)
}

func TestParse_TamperedTokenRejected(t *testing.T) {
	issuer := testIssuer(t)
	tok, err := issuer.Issue(Payload{TenantID: uuid.New(), Email: "alice@example.com", Role: "member"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tampered := tok[:len(tok)-4] + "abcd"
	_, err = issuer.Parse(tampered)
	assertInvalidInvitation(t, err)
}

func TestParse_GarbageTokenRejected(t *testing.T) {
	issuer := testIssuer(t)
	_, err := issuer.Parse("not-a-valid-token-at-all")
	assertInvalidInvitation(t, err)
}

func assertInvalidInvitation(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected an *apperr.Error, got %T: %v", err, err)
	}
	if appErr.Slug != "invalid_invitation" {
		t.Errorf("expected slug invalid_invitation, got %q", appErr.Slug)
	}
}
