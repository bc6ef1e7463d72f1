// cmd/server is the main HTTP entry point: it assembles every capability
// in platform.Services from config and hands the result to api.NewServer.
// Bootstrap order (dotenv → logger → Sentry → pool → services → listen)
// follows the teacher's cmd/api/main.go; the service graph itself is new
// since this deployment delegates credential verification to an upstream
// IdP instead of owning a local auth.AuthService.
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/auth9/auth9/internal/actions"
	"github.com/auth9/auth9/internal/api"
	"github.com/auth9/auth9/internal/audit"
	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/config"
	"github.com/auth9/auth9/internal/crypto"
	"github.com/auth9/auth9/internal/events"
	"github.com/auth9/auth9/internal/exchange"
	"github.com/auth9/auth9/internal/grpcapi"
	"github.com/auth9/auth9/internal/invite"
	"github.com/auth9/auth9/internal/mailer"
	"github.com/auth9/auth9/internal/mfa"
	"github.com/auth9/auth9/internal/oidc"
	"github.com/auth9/auth9/internal/platform"
	"github.com/auth9/auth9/internal/policy"
	"github.com/auth9/auth9/internal/ratelimit"
	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/storage"
	"github.com/auth9/auth9/internal/storage/db"
	"github.com/auth9/auth9/internal/token"
	"github.com/auth9/auth9/internal/webauthn"
	"github.com/auth9/auth9/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Setup(cfg.Env)
	log.Info("application_startup", "env", cfg.Env)
	cfg.Validate(log)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.Env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	ctx := context.Background()
	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Error("database_ping_failed", "error", err)
		os.Exit(1)
	}
	log.Info("database_connected")

	queries := db.New(pool)

	cacheStore, err := cache.New(cfg.CacheURL)
	if err != nil {
		log.Error("cache_connect_failed", "error", err)
		os.Exit(1)
	}

	tokens, err := token.NewService(cfg.IssuerURL, cfg.JWTPrivateKeyPEM, cfg.JWTLegacyKeysPEM)
	if err != nil {
		log.Error("token_service_init_failed", "error", err)
		os.Exit(1)
	}

	policyEngine := policy.NewEngine(queries, cacheStore)

	auditLogger := audit.NewDBLogger(queries, log)
	alerts := session.NewAlertEngine(pool)
	eventSink := session.NewEventSink(pool, alerts, log)
	sessions := session.NewManager(pool, cacheStore, auditLogger, log)

	actionsEngine := actions.NewEngine(pool, log)

	oidcFacade := oidc.NewFacade(oidc.Config{
		Issuer:               cfg.IssuerURL,
		UpstreamAuthorizeURL: cfg.UpstreamAuthorizeURL,
		UpstreamTokenURL:     cfg.UpstreamTokenURL,
		UpstreamLogoutURL:    cfg.UpstreamLogoutURL,
		ClientID:             cfg.OIDCClientID,
		ClientSecret:         cfg.OIDCClientSecret,
		RedirectURI:          cfg.OIDCRedirectURI,
		PortalRedirectURL:    cfg.PortalRedirectURL,
	}, pool, cacheStore, tokens, sessions, eventSink, actionsEngine, log)

	exchangeSvc := exchange.NewService(pool, cacheStore, tokens)

	webauthnEngine, err := webauthn.NewEngine(webauthn.Config{
		RPDisplayName: cfg.WebAuthnRPDisplayName,
		RPID:          cfg.WebAuthnRPID,
		RPOrigins:     cfg.WebAuthnRPOrigins,
	}, cacheStore, pool)
	if err != nil {
		log.Error("webauthn_init_failed", "error", err)
		os.Exit(1)
	}

	overrides := ratelimit.NewSettingsOverrideSource(queries)
	limiter := ratelimit.New(ratelimit.Defaults(), overrides)

	var upstreamConsumer *events.Consumer
	if cfg.UpstreamIdPURL != "" {
		source := events.NewKeycloakSource(cfg.UpstreamIdPURL, "auth9", cfg.UpstreamAdminUsername, cfg.UpstreamAdminPassword, "admin-cli")
		upstreamConsumer = events.NewConsumer(source, eventSink, queries, log, 30*time.Second)
	}

	var encryptor *crypto.Encryptor
	if len(cfg.SettingsEncryptionKey) > 0 {
		encryptor, err = crypto.NewEncryptor(cfg.SettingsEncryptionKey, cfg.SettingsLegacyKeys...)
		if err != nil {
			log.Error("encryptor_init_failed", "error", err)
			os.Exit(1)
		}
	} else {
		// dev-only fallback so invite issuance doesn't nil-panic; cfg.Validate
		// already warned loudly about this above.
		encryptor, err = crypto.NewEncryptor(make([]byte, 32))
		if err != nil {
			log.Error("dev_encryptor_init_failed", "error", err)
			os.Exit(1)
		}
	}
	invites := invite.NewIssuer(encryptor)

	var mailProvider mailer.EmailProvider
	if smtpHost := os.Getenv("SMTP_HOST"); smtpHost != "" {
		port := 587
		if p := os.Getenv("SMTP_PORT"); p != "" {
			if n, convErr := strconv.Atoi(p); convErr == nil {
				port = n
			}
		}
		mailProvider, err = mailer.NewSMTPProvider(mailer.SMTPConfig{
			Host:          smtpHost,
			Port:          port,
			User:          os.Getenv("SMTP_USER"),
			PassEncrypted: os.Getenv("SMTP_PASS_ENCRYPTED"),
			From:          getenvDefault("SMTP_FROM", "no-reply@"+cfg.WebAuthnRPID),
			TLSMode:       getenvDefault("SMTP_TLS_MODE", "starttls"),
		}, 1)
		if err != nil {
			log.Error("smtp_provider_init_failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("smtp_host_missing", "details", "mail_provider_disabled")
		mailProvider = noopMailer{log: log}
	}

	mfaSvc := mfa.NewService(cfg.IssuerURL)

	svc := &platform.Services{
		Config:   cfg,
		Log:      log,
		Pool:     pool,
		Queries:  queries,
		Cache:    cacheStore,
		Tokens:   tokens,
		Policy:   policyEngine,
		Sessions: sessions,
		Events:   eventSink,
		Alerts:   alerts,

		OIDC:     oidcFacade,
		Exchange: exchangeSvc,
		WebAuthn: webauthnEngine,
		Actions:  actionsEngine,

		RateLimit:      limiter,
		UpstreamEvents: upstreamConsumer,

		Mail:    mailProvider,
		Audit:   auditLogger,
		Invites: invites,
		MFA:     mfaSvc,
	}

	server := api.NewServer(svc)

	// The upstream-event consumer runs as its own process (cmd/worker), not
	// here — this binary only constructs it (when UpstreamIdPURL is set;
	// otherwise UpstreamEvents stays nil) for anything that wants to inspect it.

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcapi.APIKeyInterceptor(func(_ context.Context, apiKey string) (bool, error) {
		return apiKey != "" && apiKey == cfg.APIKey, nil
	})))
	grpcapi.RegisterTokenExchangeServer(grpcServer, grpcapi.NewServer(tokens, exchangeSvc, policyEngine, queries))

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Error("grpc_listen_failed", "error", err)
		os.Exit(1)
	}
	go func() {
		log.Info("grpc_listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error("grpc_serve_failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.ListenPort,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", cfg.ListenPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		pool.Close()
		log.Info("database_pool_closed")
		log.Info("server_shutdown_complete")
	}
}

func getenvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// noopMailer lets the server boot without SMTP configured (dev mode);
// every send is logged and reported as delivered so callers' flows don't
// need a feature flag for "mail is unavailable right now".
type noopMailer struct{ log *slog.Logger }

func (m noopMailer) Send(ctx context.Context, payload mailer.EmailPayload) (string, error) {
	m.log.Warn("mail_send_skipped_no_provider", "template", payload.Template, "tenant_id", payload.TenantID)
	return "noop", nil
}
