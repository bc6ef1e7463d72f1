package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/exchange"
	"github.com/auth9/auth9/internal/oidc"
	"github.com/auth9/auth9/internal/session"
)

// deviceFromRequest builds a session.Device from the inbound request, the
// one place every login-producing handler turns raw HTTP into the shape
// internal/session expects.
func deviceFromRequest(r *http.Request) session.Device {
	return session.Device{
		Descriptor: r.UserAgent(),
		IP:         helpers.GetRealIP(r).String(),
	}
}

// WellKnownConfiguration serves .well-known/openid-configuration.
func (s *Server) WellKnownConfiguration(w http.ResponseWriter, r *http.Request) {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	baseURL := scheme + "://" + r.Host
	helpers.RespondJSON(w, http.StatusOK, s.svc.OIDC.WellKnownConfiguration(baseURL))
}

// JWKS serves .well-known/jwks.json.
func (s *Server) JWKS(w http.ResponseWriter, r *http.Request) {
	helpers.RespondJSON(w, http.StatusOK, s.svc.Tokens.JWKS())
}

// Authorize starts the authorization-code round trip: it mints state,
// sets the oauth_state cookie, and redirects to the upstream authorize
// endpoint.
func (s *Server) Authorize(w http.ResponseWriter, r *http.Request) {
	connectorAlias := r.URL.Query().Get("connector")
	authorizeURL, state, err := s.svc.OIDC.Authorize(r.Context(), connectorAlias)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "authorize_failed", "AUTHORIZE_FAILED", "Could not start authorization", err))
		return
	}
	middleware.SetOAuthStateCookie(w, state, r.TLS != nil)
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// Callback completes the round trip, verifying state and redirecting the
// browser back to the Portal with a one-time login code — never a token —
// in the query string, per §4.6.
func (s *Server) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	cookie, _ := r.Cookie(middleware.OAuthStateCookieName)
	cookieState := ""
	if cookie != nil {
		cookieState = cookie.Value
	}
	http.SetCookie(w, &http.Cookie{Name: middleware.OAuthStateCookieName, Value: "", Path: "/", MaxAge: -1})

	result, err := s.svc.OIDC.Callback(r.Context(), code, state, cookieState, deviceFromRequest(r))
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindBadRequest, "callback_failed", "CALLBACK_FAILED", "Could not complete sign-in", err))
		return
	}
	http.Redirect(w, r, result.RedirectURL+"?login_code="+result.LoginCode, http.StatusFound)
}

// tokenRequest is the form body of POST /auth/token, the three supported
// grants overlaid into one struct since each only reads the fields it needs.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (s *Server) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "invalid_body", "INVALID_BODY", "Request body is not valid JSON"))
		return
	}

	result, err := s.svc.OIDC.Token(r.Context(), oidc.GrantType(req.GrantType), oidc.TokenParams{
		Code:         req.Code,
		RefreshToken: req.RefreshToken,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	}, deviceFromRequest(r))
	if err != nil {
		helpers.RespondAppError(w, err)
		return
	}
	// The token endpoint's response is the standard OAuth2 token-response
	// shape, not this API's {"data": ...} envelope.
	helpers.RespondJSON(w, http.StatusOK, result)
}

// ConsumeLoginCode exchanges the Callback redirect's one-time code for the
// Identity Token it was minted for — the Portal's first call after landing
// on the redirect.
func (s *Server) ConsumeLoginCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "missing_code", "MISSING_CODE", "code query parameter required"))
		return
	}
	idToken, err := s.svc.OIDC.ConsumeLoginCode(r.Context(), code)
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "invalid_login_code", "INVALID_LOGIN_CODE", "Login code is invalid or already used"))
		return
	}
	helpers.RespondData(w, http.StatusOK, map[string]string{"access_token": idToken, "token_type": "Bearer"})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	redirectURI := r.URL.Query().Get("post_logout_redirect_uri")

	if claims, ok := middleware.GetClaims(r.Context()); ok {
		if sid, err := uuid.Parse(claims.SID); err == nil {
			if err := s.svc.Sessions.Revoke(r.Context(), sid); err != nil {
				s.svc.Log.Warn("logout_session_revoke_failed", "error", err, "sid", claims.SID)
			}
		}
	}

	logoutURL, err := s.svc.OIDC.Logout(r.Context(), clientID, redirectURI)
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "invalid_logout_redirect", "INVALID_LOGOUT_REDIRECT", "post_logout_redirect_uri is not registered for this client"))
		return
	}
	http.Redirect(w, r, logoutURL, http.StatusFound)
}

func (s *Server) Userinfo(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	info, err := s.svc.OIDC.Userinfo(r.Context(), userID)
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	helpers.RespondData(w, http.StatusOK, info)
}

// WebAuthnAuthenticateStart begins a discoverable (usernameless) login.
func (s *Server) WebAuthnAuthenticateStart(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.WebAuthn.StartAuthentication(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "webauthn_start_failed", "WEBAUTHN_START_FAILED", "Could not start WebAuthn authentication", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, result)
}

type webauthnCompleteRequest struct {
	ChallengeID string `json:"challenge_id"`
}

// WebAuthnAuthenticateComplete finishes the ceremony and hands back a
// freshly minted Identity Token, mirroring the OIDC callback's contract.
func (s *Server) WebAuthnAuthenticateComplete(w http.ResponseWriter, r *http.Request) {
	challengeID := r.URL.Query().Get("challenge_id")
	if challengeID == "" {
		var body webauthnCompleteRequest
		_ = helpers.DecodeJSON(r, &body)
		challengeID = body.ChallengeID
	}
	if challengeID == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "missing_challenge_id", "MISSING_CHALLENGE_ID", "challenge_id required"))
		return
	}

	idToken, sess, err := s.svc.WebAuthn.CompleteAuthentication(r.Context(), challengeID, r, s.svc.Tokens, s.svc.Sessions, s.svc.Events, deviceFromRequest(r))
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindUnauthorized, "webauthn_authentication_failed", "WEBAUTHN_AUTHENTICATION_FAILED", "WebAuthn authentication failed"))
		return
	}
	helpers.RespondData(w, http.StatusOK, map[string]any{
		"access_token": idToken,
		"token_type":   "Bearer",
		"session_id":   uuid.UUID(sess.ID.Bytes).String(),
	})
}

// tenantTokenRequest is the body of the token-exchange handoff: an
// Identity Token holder trades it plus a chosen (tenant, service) for a
// scoped Tenant-Access Token, per §4.7.
type tenantTokenRequest struct {
	TenantID  string `json:"tenant_id"`
	ServiceID string `json:"service_id"`
}

func (s *Server) ExchangeTenantToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}

	var req tenantTokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "invalid_body", "INVALID_BODY", "Request body is not valid JSON"))
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_tenant_id", "INVALID_TENANT_ID", "tenant_id must be a UUID"))
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service_id must be a UUID"))
		return
	}

	result, err := s.svc.Exchange.Exchange(r.Context(), claims.TokenType, claims, exchange.Request{TenantID: tenantID, ServiceID: serviceID})
	if err != nil {
		helpers.RespondAppError(w, err)
		return
	}
	helpers.RespondData(w, http.StatusOK, result)
}
