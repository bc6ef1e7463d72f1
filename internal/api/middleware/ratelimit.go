package middleware

import (
	"net/http"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/ratelimit"
)

// RateLimit applies internal/ratelimit's bucket pool for routeTemplate,
// picking the highest-priority dimension available on the request — user
// over authenticated client over bare IP, per §4.10. Supersedes the
// teacher's IP-only IPRateLimiter, whose bucket pool and cleanup-loop shape
// now live generalized in internal/ratelimit.
func RateLimit(limiter *ratelimit.Limiter, routeTemplate string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dim, key := dimensionKey(r)
			tenantID := ""
			if tid, err := GetTenantID(r.Context()); err == nil {
				tenantID = tid.String()
			}

			if !limiter.Allow(r.Context(), tenantID, routeTemplate, dim, key) {
				w.Header().Set("Retry-After", "1")
				helpers.RespondAppError(w, apperr.New(apperr.KindRateLimited, "rate_limited", "RATE_LIMITED", "Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func dimensionKey(r *http.Request) (ratelimit.Dimension, string) {
	if userID, err := GetUserID(r.Context()); err == nil {
		return ratelimit.DimensionUser, userID.String()
	}
	if clientID := r.URL.Query().Get("client_id"); clientID != "" {
		return ratelimit.DimensionClient, clientID
	}
	return ratelimit.DimensionIP, helpers.GetRealIP(r).String()
}
