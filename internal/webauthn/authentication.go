package webauthn

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/storage/db"
	"github.com/auth9/auth9/internal/token"
)

// StartAuthResult is what start_authentication returns to the caller: the
// challenge plus the id it's filed under, since discoverable login has no
// user to key the cache on.
type StartAuthResult struct {
	ChallengeID string                           `json:"challenge_id"`
	PublicKey   *protocol.CredentialAssertion `json:"public_key"`
}

// StartAuthentication builds a discoverable (usernameless) login challenge
// and files the session state under a fresh challenge id, public endpoint.
func (e *Engine) StartAuthentication(ctx context.Context) (*StartAuthResult, error) {
	assertion, sessionData, err := e.wa.BeginDiscoverableLogin()
	if err != nil {
		return nil, fmt.Errorf("beginning discoverable login: %w", err)
	}

	challengeID := uuid.New().String()
	if err := e.storeSession(ctx, cache.KeyWebAuthnAuth(challengeID), sessionData); err != nil {
		return nil, fmt.Errorf("persisting authentication state: %w", err)
	}

	return &StartAuthResult{ChallengeID: challengeID, PublicKey: assertion}, nil
}

// CompleteAuthentication finishes a discoverable login: it resolves the
// user handle carried in the assertion back to a db.User, bumps the
// credential's sign count, creates a Session, mints an Identity Token
// carrying that session's sid, and records a webauthn LoginEvent.
func (e *Engine) CompleteAuthentication(
	ctx context.Context,
	challengeID string,
	r *http.Request,
	tokens *token.Service,
	sessions *session.Manager,
	events *session.EventSink,
	dev session.Device,
) (string, db.Session, error) {
	key := cache.KeyWebAuthnAuth(challengeID)
	sessionData, err := e.loadSession(ctx, key)
	if err != nil {
		return "", db.Session{}, err
	}
	defer e.cache.Delete(ctx, key)

	q := db.New(e.pool)

	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		userID, err := uuid.FromBytes(userHandle)
		if err != nil {
			return nil, fmt.Errorf("parsing webauthn user handle: %w", err)
		}
		return e.loadWebauthnUser(ctx, userID)
	}

	cred, err := e.wa.FinishDiscoverableLogin(handler, *sessionData, r)
	if err != nil {
		_, _ = events.Ingest(ctx, uuid.Nil, uuid.Nil, "", session.EventFailedMFA, dev.IP, dev.Descriptor, "webauthn_assertion_rejected")
		return "", db.Session{}, fmt.Errorf("finishing discoverable login: %w", err)
	}

	existing, err := q.GetWebauthnCredentialByCredentialID(ctx, cred.ID)
	if err != nil {
		return "", db.Session{}, fmt.Errorf("loading matched credential: %w", err)
	}
	userID := uuid.UUID(existing.UserID.Bytes)

	if err := q.UpdateWebauthnSignCount(ctx, existing.ID, int64(cred.Authenticator.SignCount)); err != nil {
		return "", db.Session{}, fmt.Errorf("updating sign count: %w", err)
	}

	u, err := q.GetUserByID(ctx, existing.UserID)
	if err != nil {
		return "", db.Session{}, fmt.Errorf("loading authenticated user: %w", err)
	}

	sess, err := sessions.Create(ctx, userID, dev)
	if err != nil {
		return "", db.Session{}, fmt.Errorf("creating session: %w", err)
	}
	sid := uuid.UUID(sess.ID.Bytes).String()

	displayName := u.Email
	if u.DisplayName.Valid {
		displayName = u.DisplayName.String
	}
	idToken, err := tokens.IssueIdentityToken(userID, sid, u.Email, displayName)
	if err != nil {
		return "", db.Session{}, fmt.Errorf("issuing identity token: %w", err)
	}

	// Identity-layer login events are tenant-agnostic: tenant scoping only
	// enters at token exchange (§4.7), not at the identity provider's own
	// authentication step.
	if _, err := events.Ingest(ctx, uuid.Nil, userID, u.Email, session.EventWebAuthn, dev.IP, dev.Descriptor, ""); err != nil {
		return "", db.Session{}, fmt.Errorf("recording login event: %w", err)
	}

	return idToken, sess, nil
}
