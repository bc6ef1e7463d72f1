package oidc

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/storage/db"
)

func TestDisplayNameOf_PrefersDisplayNameOverEmail(t *testing.T) {
	u := db.User{
		Email:       "alice@example.com",
		DisplayName: pgtype.Text{String: "Alice", Valid: true},
	}
	if got := displayNameOf(u); got != "Alice" {
		t.Errorf("displayNameOf = %q, want %q", got, "Alice")
	}
}

func TestDisplayNameOf_FallsBackToEmailWhenUnset(t *testing.T) {
	u := db.User{Email: "bob@example.com"}
	if got := displayNameOf(u); got != "bob@example.com" {
		t.Errorf("displayNameOf = %q, want %q", got, "bob@example.com")
	}
}
