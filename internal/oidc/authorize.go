package oidc

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/storage/db"
)

// Authorize builds the upstream authorize URL and the CSRF state value the
// caller must round-trip via cookie. connectorAlias, if present and
// matching a tenant SSO connector's upstream-alias, is forwarded verbatim
// as kc_idp_hint.
func (f *Facade) Authorize(ctx context.Context, connectorAlias string) (authorizeURL, state string, err error) {
	state = uuid.New().String()
	if err := f.cache.Set(ctx, keyState(state), []byte("1"), StateTTL); err != nil {
		return "", "", fmt.Errorf("persisting oidc state: %w", err)
	}
	return f.buildAuthorizeURL(state, connectorAlias), state, nil
}

func (f *Facade) buildAuthorizeURL(state, connectorAlias string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {f.cfg.ClientID},
		"redirect_uri":  {f.cfg.RedirectURI},
		"scope":         {"openid profile email"},
		"state":         {state},
	}
	if connectorAlias != "" {
		q.Set("kc_idp_hint", connectorAlias)
	}
	return f.cfg.UpstreamAuthorizeURL + "?" + q.Encode()
}

// Discover backs `enterprise-sso/discovery`: it resolves the connector
// bound to email's domain and returns the authorize_url pre-built with that
// connector's upstream-alias as kc_idp_hint. 404 (via ErrNoConnectorForDomain)
// if no enabled connector matches.
func (f *Facade) Discover(ctx context.Context, email string) (string, error) {
	domain, ok := domainOf(email)
	if !ok {
		return "", apperr.New(apperr.KindValidation, "invalid_email", "INVALID_EMAIL", "email is not well-formed")
	}

	q := db.New(f.pool)
	connector, err := q.GetEnabledConnectorByDomain(ctx, domain)
	if err != nil {
		return "", apperr.Wrap(apperr.KindNotFound, "no_connector_for_domain", "NO_CONNECTOR_FOR_DOMAIN",
			"no enabled connector matches that email domain", ErrNoConnectorForDomain)
	}

	state := uuid.New().String()
	if err := f.cache.Set(ctx, keyState(state), []byte("1"), StateTTL); err != nil {
		return "", fmt.Errorf("persisting oidc state: %w", err)
	}
	return f.buildAuthorizeURL(state, connector.UpstreamAlias), nil
}

func domainOf(email string) (string, bool) {
	at := -1
	for i, c := range email {
		if c == '@' {
			at = i
		}
	}
	if at <= 0 || at == len(email)-1 {
		return "", false
	}
	return email[at+1:], true
}
