package oidc

import (
	"context"
	"testing"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/session"
)

func TestToken_MissingRequiredParamsRejected(t *testing.T) {
	f := &Facade{}
	dev := session.Device{}

	cases := []struct {
		name   string
		grant  GrantType
		params TokenParams
	}{
		{"authorization_code without code", GrantAuthorizationCode, TokenParams{}},
		{"refresh_token without token", GrantRefreshToken, TokenParams{}},
		{"client_credentials without client_id", GrantClientCredentials, TokenParams{ClientSecret: "s"}},
		{"client_credentials without client_secret", GrantClientCredentials, TokenParams{ClientID: "c"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.Token(context.Background(), c.grant, c.params, dev)
			appErr, ok := apperr.As(err)
			if !ok || appErr.Slug != "missing_parameter" {
				t.Errorf("expected missing_parameter apperr, got %v", err)
			}
		})
	}
}

func TestToken_UnsupportedGrantRejected(t *testing.T) {
	f := &Facade{}
	_, err := f.Token(context.Background(), GrantType("password"), TokenParams{}, session.Device{})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Slug != "unsupported_grant_type" {
		t.Errorf("expected unsupported_grant_type apperr, got %v", err)
	}
}

func TestMissingParam_MessageNamesTheField(t *testing.T) {
	err := missingParam("client_id")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Slug != "missing_parameter" {
		t.Fatalf("expected a missing_parameter apperr, got %v", err)
	}
	if appErr.Message == "" {
		t.Error("expected a non-empty message")
	}
}
