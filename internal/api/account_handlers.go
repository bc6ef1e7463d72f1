package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/storage/db"
)

// meResponse is the identity-level "who am I" view — roles/permissions are
// per (tenant, service) and so belong to a Tenant-Access Token's own
// claims, not to this endpoint.
type meResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	MFAEnabled  bool   `json:"mfa_enabled"`
}

// Me serves GET /users/me, whitelisted for either an Identity Token or a
// Tenant-Access Token per §4.2 step 5.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	u, err := middleware.GetQueries(r.Context(), s.svc.Queries).GetUserByID(r.Context(), pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	helpers.RespondData(w, http.StatusOK, meResponse{
		ID:          userID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName.String,
		MFAEnabled:  u.MfaEnabled,
	})
}

type sessionView struct {
	ID           string `json:"id"`
	Device       string `json:"device,omitempty"`
	IPAddress    string `json:"ip_address,omitempty"`
	Location     string `json:"location,omitempty"`
	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
}

func sessionToView(s db.Session) sessionView {
	return sessionView{
		ID:           uuid.UUID(s.ID.Bytes).String(),
		Device:       s.Device.String,
		IPAddress:    s.IpAddress.String,
		Location:     s.Location.String,
		CreatedAt:    s.CreatedAt.Time.Format("2006-01-02T15:04:05Z07:00"),
		LastActiveAt: s.LastActiveAt.Time.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ListSessions serves GET /users/me/sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	sessions, err := s.svc.Sessions.List(r.Context(), userID)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "sessions_list_failed", "SESSIONS_LIST_FAILED", "Could not list sessions", err))
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionToView(sess))
	}
	helpers.RespondData(w, http.StatusOK, views)
}

// RevokeSession serves DELETE /users/me/sessions/{id}. A user may only
// revoke their own sessions — Revoke itself has no owner check, so we load
// the session first to confirm it belongs to the caller.
func (s *Server) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_session_id", "INVALID_SESSION_ID", "session id must be a UUID"))
		return
	}
	sess, err := s.svc.Queries.GetSession(r.Context(), pgtype.UUID{Bytes: sessionID, Valid: true})
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	if uuid.UUID(sess.UserID.Bytes) != userID {
		helpers.RespondAppError(w, apperr.New(apperr.KindForbidden, "not_your_session", "NOT_YOUR_SESSION", "This session does not belong to you"))
		return
	}
	if err := s.svc.Sessions.Revoke(r.Context(), sessionID); err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "session_revoke_failed", "SESSION_REVOKE_FAILED", "Could not revoke session", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mfaEnrollResponse struct {
	Secret      string   `json:"secret"`
	QRCodePNG   []byte   `json:"qr_code_png"`
	BackupCodes []string `json:"backup_codes"`
}

// StartMFAEnrollment serves POST /users/me/mfa/enroll: generates a TOTP
// secret and backup codes and saves them (secret plus backup-code hashes)
// for the user, but does not enable MFA — mfa_enabled only flips once
// ConfirmMFAEnrollment verifies the first code against the saved secret,
// so a botched QR scan never locks the account into an unusable factor.
// The plaintext secret and backup codes are handed back once.
func (s *Server) StartMFAEnrollment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	u, err := s.svc.Queries.GetUserByID(r.Context(), pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	enrollment, err := s.svc.MFA.Enroll(u.Email)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "mfa_enroll_failed", "MFA_ENROLL_FAILED", "Could not start MFA enrollment", err))
		return
	}
	if _, err := s.svc.Queries.UpsertUserMFASecret(r.Context(), pgtype.UUID{Bytes: userID, Valid: true}, enrollment.Secret, enrollment.BackupCodeHashes); err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "mfa_enroll_failed", "MFA_ENROLL_FAILED", "Could not save MFA secret", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, mfaEnrollResponse{
		Secret: enrollment.Secret, QRCodePNG: enrollment.QRCodePNG, BackupCodes: enrollment.BackupCodes,
	})
}

type confirmMFARequest struct {
	Code string `json:"code"`
}

// ConfirmMFAEnrollment serves POST /users/me/mfa/confirm: verifies the
// first TOTP code against the secret saved by StartMFAEnrollment and, only
// then, flips the user's mfa_enabled flag.
func (s *Server) ConfirmMFAEnrollment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	var req confirmMFARequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Code == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "missing_mfa_code", "MISSING_MFA_CODE", "code is required"))
		return
	}
	pgUID := pgtype.UUID{Bytes: userID, Valid: true}
	secret, err := s.svc.Queries.GetUserMFASecret(r.Context(), pgUID)
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "mfa_not_enrolled", "MFA_NOT_ENROLLED", "No pending MFA enrollment for this account"))
		return
	}
	if !s.svc.MFA.ValidateCode(req.Code, secret.Secret) {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "invalid_mfa_code", "INVALID_MFA_CODE", "The provided code is invalid"))
		return
	}
	if err := s.svc.Queries.SetUserMFAEnabled(r.Context(), pgUID, true); err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "mfa_enable_failed", "MFA_ENABLE_FAILED", "Could not enable MFA", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DisableMFA serves DELETE /users/me/mfa: clears the enabled flag, then
// removes the stored secret/backup codes. The two writes are separate and
// a failure of the second is ignored, so the secret row can outlive the
// flag.
func (s *Server) DisableMFA(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	pgUID := pgtype.UUID{Bytes: userID, Valid: true}
	if err := s.svc.Queries.SetUserMFAEnabled(r.Context(), pgUID, false); err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "mfa_disable_failed", "MFA_DISABLE_FAILED", "Could not disable MFA", err))
		return
	}
	_ = s.svc.Queries.DeleteUserMFASecret(r.Context(), pgUID)
	w.WriteHeader(http.StatusNoContent)
}

// StartWebAuthnRegistration serves POST /users/me/webauthn/credentials/start,
// letting an already-authenticated user register an additional passkey.
func (s *Server) StartWebAuthnRegistration(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	creation, err := s.svc.WebAuthn.StartRegistration(r.Context(), userID)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "webauthn_registration_start_failed", "WEBAUTHN_REGISTRATION_START_FAILED", "Could not start passkey registration", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, creation)
}

// FinishWebAuthnRegistration serves POST /users/me/webauthn/credentials.
func (s *Server) FinishWebAuthnRegistration(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	cred, err := s.svc.WebAuthn.FinishRegistration(r.Context(), userID, r)
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "webauthn_registration_failed", "WEBAUTHN_REGISTRATION_FAILED", "Could not register passkey"))
		return
	}
	helpers.RespondData(w, http.StatusCreated, cred)
}

// ListWebAuthnCredentials serves GET /users/me/webauthn/credentials.
func (s *Server) ListWebAuthnCredentials(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	creds, err := s.svc.WebAuthn.ListCredentials(r.Context(), userID)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "webauthn_list_failed", "WEBAUTHN_LIST_FAILED", "Could not list passkeys", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, creds)
}

// DeleteWebAuthnCredential serves DELETE /users/me/webauthn/credentials/{id}.
func (s *Server) DeleteWebAuthnCredential(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	credID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_credential_id", "INVALID_CREDENTIAL_ID", "credential id must be a UUID"))
		return
	}
	if err := s.svc.WebAuthn.DeleteCredential(r.Context(), userID, credID); err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
