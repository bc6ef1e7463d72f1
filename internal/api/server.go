package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/platform"
)

// Server is the HTTP façade over platform.Services: every handler method
// in this package hangs off Server so it can reach whichever capability it
// needs without a global.
type Server struct {
	Router *chi.Mux
	svc    *platform.Services
	admin  middleware.PlatformAdminChecker
}

// NewServer builds the full route tree described by the external
// interfaces section: public allow-list, tenant scope, service scope, and
// platform-admin system scope, each behind the matching middleware chain.
func NewServer(svc *platform.Services) *Server {
	s := &Server{
		svc: svc,
		admin: middleware.PlatformAdminChecker{
			Config:  svc.Config,
			Queries: svc.Queries,
		},
	}
	s.Router = s.buildRouter()
	return s
}
