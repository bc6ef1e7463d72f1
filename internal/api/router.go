package api

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/policy"
	"github.com/auth9/auth9/internal/token"
)

// buildRouter assembles the full route tree described by §6: a public
// allow-list needing no bearer token at all, a whitelist any authenticated
// token kind may call, tenant scope (RequireTenantAccess), service/role/
// permission administration nested under it, and platform-admin system
// scope, each behind the matching middleware chain from §4.2/§4.3/§4.10.
func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(middleware.RequestLogger)
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.Cors(s.svc.Config))
	r.Use(middleware.SecurityHeaders(s.svc.Config.Env == "production"))

	requireIdentity := middleware.RequireAuth(s.svc.Tokens, s.svc.Cache, token.AudienceIdentity)
	requireAnyToken := middleware.RequireAuth(s.svc.Tokens, s.svc.Cache, "")
	requireTenantAccess := middleware.RequireTenantAccess(s.admin, pathTenantID)
	requirePlatformAdmin := middleware.RequirePlatformAdmin(s.admin)
	tenantRLS := middleware.TenantScopeRLS(s.svc.Pool)

	rateLimited := func(template string) func(http.Handler) http.Handler {
		return middleware.RateLimit(s.svc.RateLimit, template)
	}

	r.Get("/health", s.HealthHandler())
	r.Get("/ready", s.ReadyHandler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public allow-list: no bearer token required at all.
		r.Group(func(r chi.Router) {
			r.Use(rateLimited("public"))
			r.Get("/.well-known/openid-configuration", s.WellKnownConfiguration)
			r.Get("/.well-known/jwks.json", s.JWKS)
			r.Get("/auth/authorize", s.Authorize)
			r.Get("/auth/callback", s.Callback)
			r.Post("/auth/token", s.Token)
			r.Get("/auth/logout", s.Logout)
			r.Get("/public/branding", s.PublicBranding)
			r.Get("/enterprise-sso/discovery", s.EnterpriseSSODiscovery)
			r.Post("/auth/webauthn/authenticate/start", s.WebAuthnAuthenticateStart)
			r.Post("/auth/webauthn/authenticate/complete", s.WebAuthnAuthenticateComplete)
		})

		// Either an Identity Token or a Tenant-Access Token may call these —
		// the fixed whitelist §4.2 step 5 carves out of an Identity Token's
		// otherwise-narrow scope.
		r.Group(func(r chi.Router) {
			r.Use(requireAnyToken)
			r.Use(rateLimited("identity"))
			r.Get("/auth/userinfo", s.Userinfo)
			r.Get("/auth/token/consume", s.ConsumeLoginCode)
			r.Post("/invitations/accept", s.AcceptInvitation)
			r.Get("/tenants", s.ListTenants)
			r.Post("/auth/tenant-token", s.ExchangeTenantToken)

			r.Get("/users/me", s.Me)
			r.Get("/users/me/sessions", s.ListSessions)
			r.Delete("/users/me/sessions/{id}", s.RevokeSession)
			r.Get("/users/me/audit-logs", s.ListMyAuditLogs)
			r.Post("/users/me/mfa/enroll", s.StartMFAEnrollment)
			r.Post("/users/me/mfa/confirm", s.ConfirmMFAEnrollment)
			r.Delete("/users/me/mfa", s.DisableMFA)
			r.Post("/users/me/webauthn/credentials/start", s.StartWebAuthnRegistration)
			r.Post("/users/me/webauthn/credentials", s.FinishWebAuthnRegistration)
			r.Get("/users/me/webauthn/credentials", s.ListWebAuthnCredentials)
			r.Delete("/users/me/webauthn/credentials/{id}", s.DeleteWebAuthnCredential)
		})

		// Tenant scope: Tenant-Access Token bound to the {id} path segment,
		// wrapped in a Row Level Security transaction for the request.
		r.Route("/tenants/{id}", func(r chi.Router) {
			r.Use(requireAnyToken)
			r.Use(requireTenantAccess)
			r.Use(tenantRLS)
			r.Use(rateLimited("tenant"))

			r.Get("/", s.GetTenant)
			r.Patch("/status", requirePlatformAdmin(http.HandlerFunc(s.UpdateTenantStatus)).ServeHTTP)
			r.Delete("/", requirePlatformAdmin(http.HandlerFunc(s.DeleteTenant)).ServeHTTP)

			r.With(middleware.RequirePermission("tenant-members:read")).Get("/members", s.ListMembers)
			r.With(middleware.RequirePermission("tenant-members:write")).Put("/members/{userId}", s.UpdateMemberRole)
			r.With(middleware.RequirePermission("tenant-members:write")).Delete("/members/{userId}", s.RemoveMember)
			r.With(middleware.RequirePermission("tenant-members:write")).Post("/invitations", s.CreateInvitation)

			r.With(middleware.RequirePermission("services:read")).Get("/services", s.ListServices)
			r.With(middleware.RequirePermission("services:write")).Post("/services", s.CreateService)

			r.With(middleware.RequireABAC(s.svc.Policy, "abac:write", tenantResource)).Put("/abac/policy", s.UpsertPolicyDraft)
			r.With(middleware.RequireABAC(s.svc.Policy, "abac:write", tenantResource)).Post("/abac/policy/{versionId}/publish", s.PublishPolicy)
			r.With(middleware.RequireABAC(s.svc.Policy, "abac:write", tenantResource)).Post("/abac/policy/{versionId}/rollback", s.RollbackPolicy)
			r.With(middleware.RequireABAC(s.svc.Policy, "abac:write", tenantResource)).Get("/abac/policy/versions", s.ListPolicyVersions)
			r.With(middleware.RequireABAC(s.svc.Policy, "abac:write", tenantResource)).Put("/abac/mode", s.SetPolicyMode)

			r.With(middleware.RequirePermission("actions:read")).Get("/actions", s.ListActions)
			r.With(middleware.RequirePermission("actions:write")).Post("/actions", s.CreateAction)
			r.With(middleware.RequirePermission("actions:write")).Put("/actions/{actionId}", s.UpdateAction)
			r.With(middleware.RequirePermission("actions:write")).Delete("/actions/{actionId}", s.DeleteAction)
			r.With(middleware.RequirePermission("actions:write")).Post("/actions/{actionId}/test", s.TestAction)
			r.With(middleware.RequirePermission("actions:read")).Get("/actions/{actionId}/logs", s.ListActionExecutions)

			r.With(middleware.RequirePermission("branding:read")).Get("/branding", s.GetTenantBranding)
			r.With(middleware.RequirePermission("branding:write")).Put("/branding", s.UpdateTenantBranding)
			r.With(middleware.RequirePermission("tenant:read")).Get("/password-policy", s.GetTenantPasswordPolicy)
			r.With(middleware.RequirePermission("tenant:write")).Put("/password-policy", s.UpdateTenantPasswordPolicy)

			r.With(middleware.RequirePermission("audit:read")).Get("/audit-logs", s.AuditLogs)
			r.With(middleware.RequirePermission("audit:read")).Get("/security-alerts", s.ListSecurityAlerts)
		})

		r.Route("/services/{serviceId}", func(r chi.Router) {
			r.Use(requireAnyToken)
			r.Use(rateLimited("service"))

			r.Get("/", s.GetService)
			r.With(middleware.RequirePermission("services:write")).Put("/", s.UpdateService)

			r.With(middleware.RequirePermission("clients:read")).Get("/clients", s.ListClients)
			r.With(middleware.RequirePermission("clients:write")).Post("/clients", s.CreateClient)

			r.With(middleware.RequirePermission("roles:read")).Get("/roles", s.ListRoles)
			r.With(middleware.RequirePermission("roles:write")).Post("/roles", s.CreateRole)

			r.With(middleware.RequirePermission("permissions:read")).Get("/permissions", s.ListPermissions)
			r.With(middleware.RequirePermission("permissions:write")).Post("/permissions", s.CreatePermission)

			r.With(middleware.RequirePermission("branding:read")).Get("/branding", s.GetServiceBranding)
			r.With(middleware.RequirePermission("branding:write")).Put("/branding", s.UpdateServiceBranding)
		})

		r.Route("/clients/{clientId}", func(r chi.Router) {
			r.Use(requireAnyToken)
			r.Use(rateLimited("service"))
			r.With(middleware.RequirePermission("clients:write")).Post("/regenerate-secret", s.RegenerateClientSecret)
		})

		r.Route("/roles/{roleId}/permissions/{permissionId}", func(r chi.Router) {
			r.Use(requireAnyToken)
			r.Use(rateLimited("service"))
			r.With(middleware.RequirePermission("permissions:write")).Put("/", s.GrantPermission)
			r.With(middleware.RequirePermission("permissions:write")).Delete("/", s.RevokePermission)
		})

		// System scope: platform-admin only, regardless of token kind.
		r.Route("/system", func(r chi.Router) {
			r.Use(requireIdentity)
			r.Use(requirePlatformAdmin)
			r.Use(rateLimited("system"))

			r.Get("/tenants", s.ListTenantsAdmin)
			r.Post("/tenants", s.CreateTenant)

			r.Get("/email-config", s.GetSystemEmailConfig)
			r.Put("/email-config", s.UpdateSystemEmailConfig)
			r.Post("/email-config/test", s.SendTestEmail)

			r.Get("/branding", s.GetSystemBranding)
			r.Put("/branding", s.UpdateSystemBranding)

			r.Get("/email-templates", s.ListEmailTemplates)
			r.Put("/email-templates/{name}", s.UpsertEmailTemplate)

			r.Get("/tenants/{id}/security-alerts", s.ListSecurityAlerts)
			r.Post("/security-alerts/{alertId}/resolve", s.ResolveSecurityAlert)
		})
	})

	return r
}

// tenantResource builds the ABAC resource for tenant-level administrative
// actions (policy authoring, mode switching): the tenant itself is the
// object being acted on.
func tenantResource(r *http.Request) policy.Resource {
	id, _ := pathTenantID(r)
	return policy.Resource{Type: "tenant", OwnerTenant: id.String()}
}
