package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/storage/db"
)

var zeroUUID uuid.UUID

// requireAnyAuthenticatedUser extracts the caller's user id regardless of
// which of the three token kinds authenticated the request — used by
// routes whitelisted for both an Identity Token and a Tenant-Access Token.
func (s *Server) requireAnyAuthenticatedUser(r *http.Request) (uuid.UUID, error) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		return uuid.Nil, apperr.ErrTokenInvalid
	}
	return userID, nil
}

// PublicBranding serves GET /public/branding?client_id=..., the unauthenticated
// lookup a login page uses to theme itself before a user has signed in.
func (s *Server) PublicBranding(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "missing_client_id", "MISSING_CLIENT_ID", "client_id query parameter required"))
		return
	}
	client, err := s.svc.Queries.GetClientByClientID(r.Context(), clientID)
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	svc, err := s.svc.Queries.GetServiceByID(r.Context(), client.ServiceID)
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}

	// Service branding falls back to its owning tenant's branding, falling
	// back again to the system-wide default — the same waterfall
	// internal/mailer uses for resolving which SMTP config applies.
	if setting, err := s.svc.Queries.GetSetting(r.Context(), db.ScopeService, client.ServiceID, settingKeyBranding); err == nil {
		helpers.RespondJSON(w, http.StatusOK, setting.Value)
		return
	}
	if svc.TenantID.Valid {
		if setting, err := s.svc.Queries.GetSetting(r.Context(), db.ScopeTenant, svc.TenantID, settingKeyBranding); err == nil {
			helpers.RespondJSON(w, http.StatusOK, setting.Value)
			return
		}
	}
	if setting, err := s.svc.Queries.GetSetting(r.Context(), db.ScopePlatform, pgUUID(zeroUUID), settingKeyBrandingSystem); err == nil {
		helpers.RespondJSON(w, http.StatusOK, setting.Value)
		return
	}
	helpers.RespondData(w, http.StatusOK, json.RawMessage("{}"))
}

// EnterpriseSSODiscovery serves GET /enterprise-sso/discovery?domain=...,
// resolving which tenant's upstream SSO connector owns an email domain so
// the Portal can route straight to it instead of showing a generic login.
func (s *Server) EnterpriseSSODiscovery(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "missing_domain", "MISSING_DOMAIN", "domain query parameter required"))
		return
	}
	connector, err := s.svc.Queries.GetEnabledConnectorByDomain(r.Context(), domain)
	if err != nil {
		helpers.RespondData(w, http.StatusOK, map[string]bool{"sso_available": false})
		return
	}
	helpers.RespondData(w, http.StatusOK, map[string]any{
		"sso_available":   true,
		"connector_alias": connector.Alias,
		"provider_type":   connector.ProviderType,
	})
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

// AcceptInvitation serves POST /invitations/accept: an authenticated user
// (their Identity Token already proves their email belongs to them via the
// upstream IdP) redeems the signed invitation token by creating their
// tenant membership.
func (s *Server) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID, err := s.requireAnyAuthenticatedUser(r)
	if err != nil {
		helpers.RespondAppError(w, err)
		return
	}

	var req acceptInvitationRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Token == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "missing_invitation_token", "MISSING_INVITATION_TOKEN", "token is required"))
		return
	}
	payload, err := s.svc.Invites.Parse(req.Token)
	if err != nil {
		helpers.RespondAppError(w, err)
		return
	}

	membership, err := s.svc.Queries.CreateMembership(r.Context(), db.CreateMembershipParams{
		TenantID: pgUUID(payload.TenantID), UserID: pgUUID(userID), Role: payload.Role,
	})
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "invitation_accept_failed", "INVITATION_ACCEPT_FAILED", "Could not accept invitation", err))
		return
	}
	helpers.RespondData(w, http.StatusCreated, membership)
}
