package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/policy"
)

// RequirePermission enforces the RBAC stage from §4.3 against the
// permission set already resolved into the Tenant-Access Token at mint time
// (internal/exchange's call to policy.Engine.ResolveRoles) — no DB round
// trip needed on the hot path.
func RequirePermission(code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perms := GetPermissions(r.Context())
			if !slices.Contains(perms, code) {
				slog.Warn("rbac_denied", "need", code, "have", perms, "path", r.URL.Path)
				helpers.RespondAppError(w, apperr.New(apperr.KindForbidden, "insufficient_permissions", "INSUFFICIENT_PERMISSIONS", "You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole enforces an exact role-name match, for the handful of routes
// spec'd in terms of roles rather than permission codes (e.g. tenant-admin
// only member management).
func RequireRole(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(GetRoles(r.Context()), name) {
				slog.Warn("rbac_denied_role", "need", name, "path", r.URL.Path)
				helpers.RespondAppError(w, apperr.New(apperr.KindForbidden, "insufficient_role", "INSUFFICIENT_ROLE", "You do not have the required role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ABACResourceFunc builds the resource side of an ABAC evaluation from the
// inbound request (e.g. reading a path param for owner-tenant attribution).
type ABACResourceFunc func(*http.Request) policy.Resource

// RequireABAC runs the §4.3 combined RBAC+ABAC decision for
// administrative handlers gated on the tenant's published policy, not just
// a static permission code (e.g. the abac/simulate endpoint itself, which
// additionally requires the abac:read permission per spec).
func RequireABAC(engine *policy.Engine, action string, resourceFn ABACResourceFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := GetUserID(r.Context())
			if err != nil {
				helpers.RespondAppError(w, apperr.ErrTokenInvalid)
				return
			}
			tenantID, err := GetTenantID(r.Context())
			if err != nil {
				helpers.RespondAppError(w, apperr.ErrCrossTenant)
				return
			}
			claims, _ := GetClaims(r.Context())
			emailDomain := ""
			mfaEnabled := false
			if claims != nil {
				if at := strings.LastIndex(claims.Email, "@"); at >= 0 {
					emailDomain = claims.Email[at+1:]
				}
			}

			subj := policy.Subject{
				UserID:      userID,
				Roles:       GetRoles(r.Context()),
				EmailDomain: emailDomain,
				MFAEnabled:  mfaEnabled,
			}
			res := resourceFn(r)
			env := policy.Environment{
				TimeOfDayMinutes: time.Now().UTC().Hour()*60 + time.Now().UTC().Minute(),
				IP:               helpers.GetRealIP(r).String(),
			}
			serviceID, _ := GetServiceID(r.Context())

			decision, err := engine.Evaluate(r.Context(), subj, tenantID, serviceID, res, action, env)
			if err != nil {
				// Fail-closed: policy-engine exceptions deny the action (§7).
				slog.Error("abac_evaluate_failed", "error", err)
				helpers.RespondAppError(w, apperr.New(apperr.KindForbidden, "policy_evaluation_failed", "POLICY_EVALUATION_FAILED", "Could not evaluate access policy"))
				return
			}
			if !decision.Allowed {
				helpers.RespondAppError(w, apperr.New(apperr.KindForbidden, "policy_denied", "POLICY_DENIED", "Access denied by policy"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
