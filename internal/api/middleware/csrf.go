package middleware

import (
	"crypto/subtle"
	"net/http"
)

// OAuthStateCookieName is the 5-min CSRF cookie set across the
// /auth/authorize → /auth/callback round-trip (§6's oauth_state cookie).
// This is the one place the API sets a browser cookie at all — the rest of
// the surface is bearer-token-only, so the teacher's generic double-submit
// CSRF middleware has no ambient cookie auth left to protect and is
// narrowed down to these two helpers instead of a blanket middleware.
const OAuthStateCookieName = "oauth_state"

// SetOAuthStateCookie stores the state value internal/oidc.Facade.Authorize
// generated, for the callback handler to compare against.
func SetOAuthStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// VerifyOAuthStateCookie constant-time compares the callback's state query
// parameter against the cookie set by SetOAuthStateCookie, and clears the
// cookie either way so it can't be replayed.
func VerifyOAuthStateCookie(w http.ResponseWriter, r *http.Request, stateParam string) bool {
	cookie, err := r.Cookie(OAuthStateCookieName)
	http.SetCookie(w, &http.Cookie{Name: OAuthStateCookieName, Value: "", Path: "/", MaxAge: -1})
	if err != nil || cookie.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(stateParam)) == 1
}
