// Package webauthn is the WebAuthn Engine (§4.8): passkey registration and
// discoverable authentication, wrapping github.com/go-webauthn/webauthn.
// Challenge state lives in the Cache & Revocation Store (§4.4,
// webauthn:reg:<user> / webauthn:auth:<challenge>, TTL 300s) rather than in
// process memory, since the teacher has no precedent for this concern —
// grounded on the pack's general cache-backed-transient-state idiom
// (internal/cache).
package webauthn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/storage/db"
)

// ChallengeTTL is §4.8's "TTL 300 s" for both registration and
// authentication challenge state.
const ChallengeTTL = 300 * time.Second

var (
	ErrChallengeExpired = errors.New("webauthn: no pending authentication state")
	ErrNotOwner          = errors.New("webauthn: credential not owned by caller")
)

// Engine ties the go-webauthn handshake state machine to cache-backed
// challenge storage and db-backed credential persistence.
type Engine struct {
	wa    *webauthn.WebAuthn
	cache *cache.Store
	pool  *pgxpool.Pool
}

// Config mirrors the subset of webauthn.Config this deployment needs.
type Config struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
}

func NewEngine(cfg Config, c *cache.Store, pool *pgxpool.Pool) (*Engine, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing webauthn relying party: %w", err)
	}
	return &Engine{wa: wa, cache: c, pool: pool}, nil
}

// webauthnUser adapts a db.User plus its stored credentials to the
// webauthn.User interface go-webauthn requires for registration.
type webauthnUser struct {
	user        db.User
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte          { return u.user.ID.Bytes[:] }
func (u *webauthnUser) WebAuthnName() string        { return u.user.Email }
func (u *webauthnUser) WebAuthnDisplayName() string {
	if u.user.DisplayName.Valid {
		return u.user.DisplayName.String
	}
	return u.user.Email
}
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
func (u *webauthnUser) WebAuthnIcon() string                       { return "" }

func (e *Engine) loadWebauthnUser(ctx context.Context, userID uuid.UUID) (*webauthnUser, error) {
	q := db.New(e.pool)
	pgID := pgtype.UUID{Bytes: userID, Valid: true}

	u, err := q.GetUserByID(ctx, pgID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	rows, err := q.ListWebauthnCredentialsForUser(ctx, pgID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	creds := make([]webauthn.Credential, 0, len(rows))
	for _, r := range rows {
		creds = append(creds, webauthn.Credential{
			ID:        r.CredentialID,
			PublicKey: r.PublicKey,
			Authenticator: webauthn.Authenticator{
				AAGUID:    []byte(r.Aaguid.String),
				SignCount: uint32(r.SignCount),
			},
		})
	}
	return &webauthnUser{user: u, credentials: creds}, nil
}

func (e *Engine) storeSession(ctx context.Context, key string, sd *webauthn.SessionData) error {
	payload, err := json.Marshal(sd)
	if err != nil {
		return fmt.Errorf("marshaling session data: %w", err)
	}
	return e.cache.Set(ctx, key, payload, ChallengeTTL)
}

func (e *Engine) loadSession(ctx context.Context, key string) (*webauthn.SessionData, error) {
	raw, err := e.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrChallengeExpired
		}
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, fmt.Errorf("unmarshaling session data: %w", err)
	}
	return &sd, nil
}
