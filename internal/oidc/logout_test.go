package oidc

import (
	"context"
	"testing"

	"github.com/auth9/auth9/internal/apperr"
)

func TestExactMatch(t *testing.T) {
	allowed := []string{"https://app.example.com/logged-out", "https://app.example.com/bye"}

	if !exactMatch(allowed, "https://app.example.com/logged-out") {
		t.Error("expected an exact match to be allowed")
	}
	if exactMatch(allowed, "https://app.example.com/logged-out/") {
		t.Error("trailing slash should not match — exact match only, no prefix matching")
	}
	if exactMatch(allowed, "https://evil.example.com/logged-out") {
		t.Error("different host should not match")
	}
	if exactMatch(nil, "https://app.example.com/logged-out") {
		t.Error("empty allowed set should never match")
	}
}

func TestLogout_MissingParametersRejected(t *testing.T) {
	f := &Facade{}

	if _, err := f.Logout(context.Background(), "", "https://app.example.com/bye"); err == nil {
		t.Error("expected an error for missing client_id")
	} else if appErr, ok := apperr.As(err); !ok || appErr.Slug != "missing_parameter" {
		t.Errorf("expected missing_parameter apperr, got %v", err)
	}

	if _, err := f.Logout(context.Background(), "client-1", ""); err == nil {
		t.Error("expected an error for missing post_logout_redirect_uri")
	} else if appErr, ok := apperr.As(err); !ok || appErr.Slug != "missing_parameter" {
		t.Errorf("expected missing_parameter apperr, got %v", err)
	}
}
