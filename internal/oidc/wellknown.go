package oidc

import "github.com/auth9/auth9/internal/token"

// Discovery is `.well-known/openid-configuration`.
type Discovery struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	UserinfoEndpoint      string   `json:"userinfo_endpoint"`
	JWKSURI               string   `json:"jwks_uri"`
	EndSessionEndpoint    string   `json:"end_session_endpoint"`
	ResponseTypesSupported []string `json:"response_types_supported"`
	SubjectTypesSupported  []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	GrantTypesSupported    []string `json:"grant_types_supported"`
}

// WellKnownConfiguration builds the discovery document advertising this
// system's own endpoints — note these point at auth9 itself, not the
// upstream Keycloak realm, since auth9 is the issuer every downstream
// client actually trusts.
func (f *Facade) WellKnownConfiguration(baseURL string) Discovery {
	return Discovery{
		Issuer:                 f.cfg.Issuer,
		AuthorizationEndpoint:  baseURL + "/auth/authorize",
		TokenEndpoint:          baseURL + "/auth/token",
		UserinfoEndpoint:       baseURL + "/auth/userinfo",
		JWKSURI:                baseURL + "/.well-known/jwks.json",
		EndSessionEndpoint:     baseURL + "/auth/logout",
		ResponseTypesSupported: []string{"code"},
		SubjectTypesSupported:  []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		GrantTypesSupported:    []string{"authorization_code", "refresh_token", "client_credentials"},
	}
}

// JWKS delegates to the Key & JWT Service's published key ring.
func (f *Facade) JWKS() token.JWKS {
	return f.tokens.JWKS()
}
