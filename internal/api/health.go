package api

import (
	"encoding/json"
	"net/http"
)

// HealthHandler is bare liveness: does the process respond at all. It
// never touches the database, so a slow or down Postgres doesn't flip a
// load balancer's liveness probe and restart a perfectly healthy process.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

// ReadyHandler is readiness: can this process actually serve traffic right
// now, which for auth9 means Postgres and the revocation-store cache are
// both reachable.
func (s *Server) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := s.svc.Pool.Ping(ctx); err != nil {
			s.svc.Log.Error("readiness_check_failed", "error", err, "detail", "database_unreachable")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unready", "error": "database_unreachable"})
			return
		}
		if err := s.svc.Cache.Ping(ctx); err != nil {
			s.svc.Log.Error("readiness_check_failed", "error", err, "detail", "cache_unreachable")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unready", "error": "cache_unreachable"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}
