// Package oidc is the OIDC Façade (§4.6): a self-hosted authorization-code
// front door over an upstream IdP (Keycloak). This system never verifies
// primary credentials itself — it forwards the browser to the upstream
// authorize endpoint, exchanges the returned code, and re-mints its own
// signed tokens so every downstream consumer only ever has to trust one
// issuer. Control-flow shape (config struct, sentinel errors, an
// orchestrating service holding its dependencies as fields) is grounded on
// the teacher's internal/auth/service.go; the upstream HTTP exchange itself
// has no teacher precedent since the teacher has no delegated-IdP concept.
package oidc

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/actions"
	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/token"
)

// StateTTL is §4.6's "5-min TTL" on the CSRF state value generated at
// authorize time.
const StateTTL = 5 * time.Minute

var (
	ErrStateMismatch        = errors.New("oidc: state does not match")
	ErrStateExpired         = errors.New("oidc: state expired or unknown")
	ErrUnsupportedGrant     = errors.New("oidc: unsupported grant_type")
	ErrNoConnectorForDomain = errors.New("oidc: no enabled connector for that email domain")
	ErrRedirectURINotAllowed = errors.New("oidc: redirect_uri is not registered for this client")
	ErrInvalidClientSecret  = errors.New("oidc: invalid client credentials")
)

// Config carries everything needed to talk to the single upstream realm
// this deployment delegates to.
type Config struct {
	Issuer string // this system's own iss, e.g. "https://auth.example.com"

	UpstreamAuthorizeURL string
	UpstreamTokenURL     string
	UpstreamLogoutURL    string

	ClientID     string
	ClientSecret string
	RedirectURI  string

	PortalRedirectURL string // where Callback sends the browser after minting
}

// Facade wires the upstream IdP exchange to the Key & JWT Service, Session
// & Event Pipeline, and Actions Engine.
type Facade struct {
	cfg     Config
	pool    *pgxpool.Pool
	cache   *cache.Store
	tokens  *token.Service
	sess    *session.Manager
	events  *session.EventSink
	actions *actions.Engine
	http    *http.Client
	log     *slog.Logger
}

func NewFacade(
	cfg Config,
	pool *pgxpool.Pool,
	c *cache.Store,
	tokens *token.Service,
	sess *session.Manager,
	events *session.EventSink,
	actionsEngine *actions.Engine,
	log *slog.Logger,
) *Facade {
	return &Facade{
		cfg:     cfg,
		pool:    pool,
		cache:   c,
		tokens:  tokens,
		sess:    sess,
		events:  events,
		actions: actionsEngine,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func keyState(state string) string { return "oidc:state:" + state }

func keyLoginCode(code string) string { return "oidc:login_code:" + code }
