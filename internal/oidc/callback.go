package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/actions"
	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/storage/db"
)

// LoginCodeTTL bounds how long a one-time login code survives between the
// browser redirect and the Portal's server-side exchange for the actual
// Identity Token — long enough for a redirect round trip, short enough
// that a leaked Referer header or browser history entry is worthless.
const LoginCodeTTL = 60 * time.Second

// platformTenantSlug is the reserved tenant (§4.2) that identity-level
// Actions triggers — post-login, pre/post-user-registration,
// post-change-password, post-email-verification — run under, since those
// pipeline stages complete before a caller has chosen a tenant via Token
// Exchange (§4.7). pre-token-refresh runs under the tenant bound to the
// Tenant-Access Token instead.
const platformTenantSlug = "auth9-platform"

// CallbackResult is what the OIDC callback hands back to the HTTP layer:
// a redirect target carrying only an opaque one-time code, never a token.
type CallbackResult struct {
	RedirectURL string
	LoginCode   string
}

// Callback verifies state, exchanges the upstream code, creates a Session,
// runs post-login Actions, re-mints an Identity Token bound to that
// session, records the login event, and returns a redirect target whose
// query string carries only a one-time login code — never the token
// itself, per §4.6.
func (f *Facade) Callback(ctx context.Context, code, state, cookieState string, dev session.Device) (*CallbackResult, error) {
	if state == "" || cookieState == "" || state != cookieState {
		return nil, ErrStateMismatch
	}
	known, err := f.cache.Exists(ctx, keyState(state))
	if err != nil {
		return nil, fmt.Errorf("checking oidc state: %w", err)
	}
	if !known {
		return nil, ErrStateExpired
	}
	_ = f.cache.Delete(ctx, keyState(state))

	idToken, _, err := f.exchangeAndMint(ctx, code, dev)
	if err != nil {
		return nil, err
	}

	loginCode := uuid.New().String()
	if err := f.cache.Set(ctx, keyLoginCode(loginCode), []byte(idToken), LoginCodeTTL); err != nil {
		return nil, fmt.Errorf("persisting login code: %w", err)
	}

	return &CallbackResult{
		RedirectURL: f.cfg.PortalRedirectURL,
		LoginCode:   loginCode,
	}, nil
}

// ConsumeLoginCode exchanges a one-time login code for the Identity Token
// it was minted for. Single use: the code is deleted on first read.
func (f *Facade) ConsumeLoginCode(ctx context.Context, code string) (string, error) {
	raw, err := f.cache.Get(ctx, keyLoginCode(code))
	if err != nil {
		return "", errors.New("oidc: login code not found or already used")
	}
	_ = f.cache.Delete(ctx, keyLoginCode(code))
	return string(raw), nil
}

// exchangeAndMint is the shared core of Callback and Token's
// authorization_code handling: exchange the upstream code, find-or-create
// the local user record, create a session, run post-login Actions, mint a
// fresh Identity Token carrying that session's sid and record the login
// event.
func (f *Facade) exchangeAndMint(ctx context.Context, code string, dev session.Device) (string, db.Session, error) {
	upstream, err := f.exchangeCode(ctx, code)
	if err != nil {
		return "", db.Session{}, fmt.Errorf("exchanging upstream code: %w", err)
	}
	claims, err := parseUpstreamIdentity(upstream.IDToken)
	if err != nil {
		return "", db.Session{}, err
	}

	u, err := f.findOrCreateUser(ctx, claims)
	if err != nil {
		return "", db.Session{}, fmt.Errorf("resolving local user: %w", err)
	}
	userID := uuid.UUID(u.ID.Bytes)

	sess, err := f.sess.Create(ctx, userID, dev)
	if err != nil {
		return "", db.Session{}, fmt.Errorf("creating session: %w", err)
	}
	sid := uuid.UUID(sess.ID.Bytes).String()

	if f.actions != nil {
		if platformTenantID, err := f.platformTenantID(ctx); err == nil {
			execCtx := &actions.ExecutionContext{
				User:    actions.UserInfo{ID: userID.String(), Email: u.Email, DisplayName: displayNameOf(u)},
				Request: actions.RequestInfo{IP: dev.IP, UserAgent: dev.Descriptor},
				Claims:  map[string]interface{}{},
			}
			if _, err := f.actions.Run(ctx, platformTenantID, actions.TriggerPostLogin, execCtx); err != nil {
				f.log.Warn("post_login_action_failed", "user_id", userID, "error", err)
			}
		}
	}

	idToken, err := f.tokens.IssueIdentityToken(userID, sid, u.Email, displayNameOf(u))
	if err != nil {
		return "", db.Session{}, fmt.Errorf("issuing identity token: %w", err)
	}

	if _, err := f.events.Ingest(ctx, uuid.Nil, userID, u.Email, session.EventSuccess, dev.IP, dev.Descriptor, ""); err != nil {
		return "", db.Session{}, fmt.Errorf("recording login event: %w", err)
	}

	return idToken, sess, nil
}

func (f *Facade) findOrCreateUser(ctx context.Context, claims *upstreamClaims) (db.User, error) {
	q := db.New(f.pool)

	u, err := q.GetUserByUpstreamSub(ctx, claims.Sub)
	if err == nil {
		return u, nil
	}

	return q.CreateUser(ctx, db.CreateUserParams{
		UpstreamSub: claims.Sub,
		Email:       claims.Email,
		DisplayName: pgtype.Text{String: claims.Name, Valid: claims.Name != ""},
	})
}

func (f *Facade) platformTenantID(ctx context.Context) (pgtype.UUID, error) {
	q := db.New(f.pool)
	t, err := q.GetTenantBySlug(ctx, platformTenantSlug)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("loading platform tenant: %w", err)
	}
	return t.ID, nil
}

func displayNameOf(u db.User) string {
	if u.DisplayName.Valid {
		return u.DisplayName.String
	}
	return u.Email
}
