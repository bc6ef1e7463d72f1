// Package platform is §9's "trait-object injection for handlers" pattern
// re-expressed as an explicit capability-set struct: every HTTP/gRPC handler
// depends on a small, enumerated set of these services rather than reaching
// into a global. Grounded on DavidHoenisch-locky/auth/core/interfaces.go's
// Core struct, which aggregates Store/Authorizer/PolicyEngine/AuditSink/etc
// behind one entry point.
package platform

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/actions"
	"github.com/auth9/auth9/internal/audit"
	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/config"
	"github.com/auth9/auth9/internal/events"
	"github.com/auth9/auth9/internal/exchange"
	"github.com/auth9/auth9/internal/invite"
	"github.com/auth9/auth9/internal/mailer"
	"github.com/auth9/auth9/internal/mfa"
	"github.com/auth9/auth9/internal/oidc"
	"github.com/auth9/auth9/internal/policy"
	"github.com/auth9/auth9/internal/ratelimit"
	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/storage/db"
	"github.com/auth9/auth9/internal/token"
	"github.com/auth9/auth9/internal/webauthn"
)

// Services is the capability set assembled once at process startup and
// threaded through every handler/interceptor; a test assembly can swap any
// field for a fake without touching handler code.
type Services struct {
	Config config.Config
	Log    *slog.Logger

	Pool    *pgxpool.Pool
	Queries *db.Queries
	Cache   *cache.Store

	Tokens   *token.Service
	Policy   *policy.Engine
	Sessions *session.Manager
	Events   *session.EventSink
	Alerts   *session.AlertEngine

	OIDC     *oidc.Facade
	Exchange *exchange.Service
	WebAuthn *webauthn.Engine
	Actions  *actions.Engine

	RateLimit      *ratelimit.Limiter
	UpstreamEvents *events.Consumer

	Mail    mailer.EmailProvider
	Audit   audit.AuditService
	Invites *invite.Issuer
	MFA     *mfa.Service
}
