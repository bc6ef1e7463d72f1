package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/auth9/auth9/internal/config"
)

// Cors enforces §6's CORS contract from the configured allow-list:
// credentials permitted, no wildcard when credentials are enabled, and a
// `null` Origin is always rejected (the literal string "null", sent by
// browsers for sandboxed/file-origin contexts, not the absence of the
// header). Generalizes the teacher's per-tenant DynamicCorsMiddleware to a
// single global allow-list, since auth9's cors_allowed_origins is a
// process-wide configuration option, not a per-tenant one.
func Cors(cfg config.Config) func(http.Handler) http.Handler {
	wildcard := len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if origin == "null" {
				slog.Warn("cors_null_origin_rejected", "path", r.URL.Path)
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			}

			// Wildcard configuration never grants credentials (spec forbids
			// combining "*" with Allow-Credentials); every other configured
			// origin is credentialed.
			allowed := wildcard || slices.Contains(cfg.CORSAllowedOrigins, origin)

			if r.Method == http.MethodOptions {
				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					if !wildcard {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
					w.Header().Set("Vary", "Origin")
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if !allowed {
				slog.Warn("cors_origin_rejected", "origin", origin, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if !wildcard {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Vary", "Origin")
			next.ServeHTTP(w, r)
		})
	}
}
