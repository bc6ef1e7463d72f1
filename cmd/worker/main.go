// cmd/worker is the upstream-event consumer + janitor process: it drains
// Keycloak's admin event log into the login-event pipeline (so security
// alerts fire on failed logins the OIDC façade never sees directly, since
// it only runs on success) and, on a slower cadence, deletes refresh
// tokens past their expiry. Repurposed from the teacher's single ticker
// loop, which only ever ran the janitor half.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auth9/auth9/internal/config"
	"github.com/auth9/auth9/internal/events"
	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/storage"
	"github.com/auth9/auth9/internal/storage/db"
	"github.com/auth9/auth9/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.Env)
	cfg.Validate(log)

	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	queries := db.New(pool)
	alerts := session.NewAlertEngine(pool)
	sink := session.NewEventSink(pool, alerts, log)

	var source events.Source
	if cfg.UpstreamIdPURL != "" {
		source = events.NewKeycloakSource(cfg.UpstreamIdPURL, "auth9", cfg.UpstreamAdminUsername, cfg.UpstreamAdminPassword, "admin-cli")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if source != nil {
		consumer := events.NewConsumer(source, sink, queries, log, 30*time.Second)
		go consumer.Run(ctx)
		log.Info("upstream_event_consumer_started", "interval", "30s")
	} else {
		log.Warn("upstream_event_consumer_disabled", "details", "UPSTREAM_IDP_URL not set")
	}

	janitorTicker := time.NewTicker(time.Hour)
	defer janitorTicker.Stop()

	runJanitor(ctx, queries, log)
	for {
		select {
		case <-janitorTicker.C:
			runJanitor(ctx, queries, log)
		case <-ctx.Done():
			log.Info("worker_shutting_down")
			return
		}
	}
}

func runJanitor(ctx context.Context, q *db.Queries, log *slog.Logger) {
	count, err := q.CleanExpiredRefreshTokens(ctx)
	if err != nil {
		log.Error("clean_refresh_tokens_failed", "error", err)
		return
	}
	if count > 0 {
		log.Info("cleaned_refresh_tokens", "deleted", count)
	}
}
