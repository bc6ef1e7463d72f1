package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/auth"
	"github.com/auth9/auth9/internal/policy"
	"github.com/auth9/auth9/internal/storage/db"
)

var clientSecretHasher = auth.NewBcryptHasher()

type createServiceRequest struct {
	DisplayName  string   `json:"display_name"`
	BaseURL      string   `json:"base_url"`
	RedirectURIs []string `json:"redirect_uris"`
	LogoutURIs   []string `json:"logout_uris"`
}

// CreateService serves POST /tenants/{id}/services.
func (s *Server) CreateService(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := pathUUID(r, "id")
	var req createServiceRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.DisplayName == "" || req.BaseURL == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service", "INVALID_SERVICE", "display_name and base_url are required"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	svc, err := q.CreateService(r.Context(), db.CreateServiceParams{
		TenantID: pgUUID(tenantID), DisplayName: req.DisplayName, BaseUrl: req.BaseURL,
		RedirectUris: req.RedirectURIs, LogoutUris: req.LogoutURIs,
	})
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "service_create_failed", "SERVICE_CREATE_FAILED", "Could not create service", err))
		return
	}
	helpers.RespondData(w, http.StatusCreated, svc)
}

// ListServices serves GET /tenants/{id}/services.
func (s *Server) ListServices(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := pathUUID(r, "id")
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	list, err := q.ListServicesByTenant(r.Context(), pgUUID(tenantID))
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "services_list_failed", "SERVICES_LIST_FAILED", "Could not list services", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, list)
}

// GetService serves GET /services/{serviceId}.
func (s *Server) GetService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	svc, err := s.svc.Queries.GetServiceByID(r.Context(), pgUUID(serviceID))
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	helpers.RespondData(w, http.StatusOK, svc)
}

// UpdateService serves PUT /services/{serviceId}.
func (s *Server) UpdateService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	var req createServiceRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindBadRequest, "invalid_body", "INVALID_BODY", "Request body is not valid JSON"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	if err := q.UpdateService(r.Context(), db.UpdateServiceParams{
		ID: pgUUID(serviceID), DisplayName: req.DisplayName, BaseUrl: req.BaseURL,
		RedirectUris: req.RedirectURIs, LogoutUris: req.LogoutURIs,
	}); err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clients: each service may register one or more OAuth clients (the
// confidential backend client and, optionally, a public SPA client).

type createClientRequest struct {
	ClientID     string `json:"client_id"`
	Confidential bool   `json:"confidential"`
}

// CreateClient serves POST /services/{serviceId}/clients. For confidential
// clients the plaintext secret is returned exactly once, mirroring how
// internal/token hands back a signing key only at generation time.
func (s *Server) CreateClient(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	var req createClientRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.ClientID == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_client", "INVALID_CLIENT", "client_id is required"))
		return
	}

	var secretHash pgtype.Text
	var plaintextSecret string
	if req.Confidential {
		plaintextSecret = generateClientSecret()
		hash, err := clientSecretHasher.Hash(plaintextSecret)
		if err != nil {
			helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "secret_hash_failed", "SECRET_HASH_FAILED", "Could not generate client secret", err))
			return
		}
		secretHash = pgtype.Text{String: hash, Valid: true}
	}

	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	client, err := q.CreateClient(r.Context(), db.CreateClientParams{
		ServiceID: pgUUID(serviceID), ClientID: req.ClientID, SecretHash: secretHash, Confidential: req.Confidential,
	})
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindConflict, "client_create_failed", "CLIENT_CREATE_FAILED", "Could not create client (client_id may already be taken)", err))
		return
	}
	resp := map[string]any{"client": client}
	if plaintextSecret != "" {
		resp["client_secret"] = plaintextSecret
	}
	helpers.RespondData(w, http.StatusCreated, resp)
}

// ListClients serves GET /services/{serviceId}/clients.
func (s *Server) ListClients(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	list, err := q.ListClientsByService(r.Context(), pgUUID(serviceID))
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "clients_list_failed", "CLIENTS_LIST_FAILED", "Could not list clients", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, list)
}

// RegenerateClientSecret serves POST /clients/{clientId}/regenerate-secret.
func (s *Server) RegenerateClientSecret(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathUUID(r, "clientId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_client_id", "INVALID_CLIENT_ID", "client id must be a UUID"))
		return
	}
	plaintext := generateClientSecret()
	hash, err := clientSecretHasher.Hash(plaintext)
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "secret_hash_failed", "SECRET_HASH_FAILED", "Could not generate client secret", err))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	if err := q.RegenerateClientSecret(r.Context(), pgUUID(clientID), hash); err != nil {
		helpers.RespondAppError(w, apperr.ErrNotFound)
		return
	}
	helpers.RespondData(w, http.StatusOK, map[string]string{"client_secret": plaintext})
}

func generateClientSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Roles and permissions.

type createRoleRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

// CreateRole serves POST /services/{serviceId}/roles.
func (s *Server) CreateRole(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	var req createRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Name == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_role", "INVALID_ROLE", "name is required"))
		return
	}
	var parentID pgtype.UUID
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	if req.ParentID != "" {
		pid, err := uuid.Parse(req.ParentID)
		if err != nil {
			helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_parent_id", "INVALID_PARENT_ID", "parent_id must be a UUID"))
			return
		}
		parentID = pgUUID(pid)

		// §3's depth ≤ 8 is enforced here, at write time: the new role would
		// sit one level below parentID, so parentID's own chain must not
		// already span the full budget.
		chain, err := q.GetRoleParentChain(r.Context(), parentID, policy.MaxRoleDepth)
		if err != nil {
			helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "role_depth_check_failed", "ROLE_DEPTH_CHECK_FAILED", "Could not verify role depth", err))
			return
		}
		if int32(len(chain)) >= policy.MaxRoleDepth {
			helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "role_depth_exceeded", "ROLE_DEPTH_EXCEEDED", "role hierarchy would exceed the maximum depth of 8"))
			return
		}
	}
	role, err := q.CreateRole(r.Context(), db.CreateRoleParams{ServiceID: pgUUID(serviceID), Name: req.Name, ParentID: parentID})
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindConflict, "role_create_failed", "ROLE_CREATE_FAILED", "Could not create role", err))
		return
	}
	helpers.RespondData(w, http.StatusCreated, role)
}

// ListRoles serves GET /services/{serviceId}/roles.
func (s *Server) ListRoles(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	list, err := q.ListRolesByService(r.Context(), pgUUID(serviceID))
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "roles_list_failed", "ROLES_LIST_FAILED", "Could not list roles", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, list)
}

type createPermissionRequest struct {
	Code string `json:"code"`
}

// CreatePermission serves POST /services/{serviceId}/permissions.
func (s *Server) CreatePermission(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	var req createPermissionRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Code == "" {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_permission", "INVALID_PERMISSION", "code is required"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	perm, err := q.CreatePermission(r.Context(), db.CreatePermissionParams{ServiceID: pgUUID(serviceID), Code: req.Code})
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindConflict, "permission_create_failed", "PERMISSION_CREATE_FAILED", "Could not create permission", err))
		return
	}
	helpers.RespondData(w, http.StatusCreated, perm)
}

// ListPermissions serves GET /services/{serviceId}/permissions.
func (s *Server) ListPermissions(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "serviceId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_service_id", "INVALID_SERVICE_ID", "service id must be a UUID"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	list, err := q.ListPermissionsByService(r.Context(), pgUUID(serviceID))
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "permissions_list_failed", "PERMISSIONS_LIST_FAILED", "Could not list permissions", err))
		return
	}
	helpers.RespondData(w, http.StatusOK, list)
}

// GrantPermission serves PUT /roles/{roleId}/permissions/{permissionId}.
func (s *Server) GrantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathUUID(r, "roleId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_role_id", "INVALID_ROLE_ID", "role id must be a UUID"))
		return
	}
	permissionID, err := pathUUID(r, "permissionId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_permission_id", "INVALID_PERMISSION_ID", "permission id must be a UUID"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	if err := q.GrantPermission(r.Context(), pgUUID(roleID), pgUUID(permissionID)); err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "permission_grant_failed", "PERMISSION_GRANT_FAILED", "Could not grant permission", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokePermission serves DELETE /roles/{roleId}/permissions/{permissionId}.
func (s *Server) RevokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathUUID(r, "roleId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_role_id", "INVALID_ROLE_ID", "role id must be a UUID"))
		return
	}
	permissionID, err := pathUUID(r, "permissionId")
	if err != nil {
		helpers.RespondAppError(w, apperr.New(apperr.KindValidation, "invalid_permission_id", "INVALID_PERMISSION_ID", "permission id must be a UUID"))
		return
	}
	q := middleware.GetQueries(r.Context(), s.svc.Queries)
	if err := q.RevokePermission(r.Context(), pgUUID(roleID), pgUUID(permissionID)); err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "permission_revoke_failed", "PERMISSION_REVOKE_FAILED", "Could not revoke permission", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetServiceBranding serves GET /services/{serviceId}/branding.
func (s *Server) GetServiceBranding(w http.ResponseWriter, r *http.Request) {
	s.getSetting(w, r, db.ScopeService, "serviceId", settingKeyBranding)
}

// UpdateServiceBranding serves PUT /services/{serviceId}/branding.
func (s *Server) UpdateServiceBranding(w http.ResponseWriter, r *http.Request) {
	s.putSetting(w, r, db.ScopeService, "serviceId", settingKeyBranding)
}
