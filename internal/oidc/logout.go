package oidc

import (
	"context"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/storage/db"
)

// Logout validates that postLogoutRedirectURI is registered in clientID's
// logout-URIs set (exact match) and returns the upstream logout URL to
// redirect the browser to. §4.6: missing either parameter, or a redirect
// URI not in the set, is a 400.
func (f *Facade) Logout(ctx context.Context, clientID, postLogoutRedirectURI string) (string, error) {
	if clientID == "" || postLogoutRedirectURI == "" {
		return "", apperr.New(apperr.KindBadRequest, "missing_parameter", "MISSING_PARAMETER",
			"client_id and post_logout_redirect_uri are both required")
	}

	q := db.New(f.pool)
	client, err := q.GetClientByClientID(ctx, clientID)
	if err != nil {
		return "", apperr.New(apperr.KindBadRequest, "unknown_client", "UNKNOWN_CLIENT", "unknown client_id")
	}
	svc, err := q.GetServiceByID(ctx, client.ServiceID)
	if err != nil {
		return "", apperr.New(apperr.KindBadRequest, "unknown_client", "UNKNOWN_CLIENT", "client's service not found")
	}

	if !exactMatch(svc.LogoutUris, postLogoutRedirectURI) {
		return "", apperr.New(apperr.KindBadRequest, "redirect_uri_not_allowed", "REDIRECT_URI_NOT_ALLOWED",
			"post_logout_redirect_uri is not registered for this client")
	}

	return f.cfg.UpstreamLogoutURL + "?post_logout_redirect_uri=" + postLogoutRedirectURI + "&client_id=" + clientID, nil
}

// exactMatch is §4.6's redirect-URI validation: scheme+host+port+path must
// match exactly, no prefix or wildcard matching.
func exactMatch(allowed []string, candidate string) bool {
	for _, u := range allowed {
		if u == candidate {
			return true
		}
	}
	return false
}
