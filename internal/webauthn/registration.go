package webauthn

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/storage/db"
)

// StartRegistration builds a CreationChallengeResponse excluding the user's
// existing credential ids and persists the session state under
// webauthn:reg:<user>.
func (e *Engine) StartRegistration(ctx context.Context, userID uuid.UUID) (*protocol.CredentialCreation, error) {
	u, err := e.loadWebauthnUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(u.credentials))
	for _, c := range u.credentials {
		exclusions = append(exclusions, c.Descriptor())
	}
	creation, sessionData, err := e.wa.BeginRegistration(u, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}

	if err := e.storeSession(ctx, cache.KeyWebAuthnReg(userID.String()), sessionData); err != nil {
		return nil, fmt.Errorf("persisting registration state: %w", err)
	}
	return creation, nil
}

// FinishRegistration completes the handshake and persists a new
// WebAuthnCredential row with an AAGUID and empty user label.
func (e *Engine) FinishRegistration(ctx context.Context, userID uuid.UUID, r *http.Request) (db.WebauthnCredential, error) {
	u, err := e.loadWebauthnUser(ctx, userID)
	if err != nil {
		return db.WebauthnCredential{}, err
	}

	key := cache.KeyWebAuthnReg(userID.String())
	sessionData, err := e.loadSession(ctx, key)
	if err != nil {
		return db.WebauthnCredential{}, err
	}
	defer e.cache.Delete(ctx, key)

	cred, err := e.wa.FinishRegistration(u, *sessionData, r)
	if err != nil {
		return db.WebauthnCredential{}, fmt.Errorf("finishing registration: %w", err)
	}

	q := db.New(e.pool)
	return q.CreateWebauthnCredential(ctx, db.CreateWebauthnCredentialParams{
		UserID:       pgtype.UUID{Bytes: userID, Valid: true},
		CredentialID: cred.ID,
		PublicKey:    cred.PublicKey,
		Label:        pgtype.Text{Valid: false},
		Aaguid:       pgtype.Text{String: string(cred.Authenticator.AAGUID), Valid: len(cred.Authenticator.AAGUID) > 0},
		SignCount:    int64(cred.Authenticator.SignCount),
	})
}

// DeleteCredential removes a credential, refusing to touch one the caller
// doesn't own (§4.8: "delete refuses credentials not owned by the caller").
func (e *Engine) DeleteCredential(ctx context.Context, userID, credentialRowID uuid.UUID) error {
	q := db.New(e.pool)
	return q.DeleteWebauthnCredential(ctx, pgtype.UUID{Bytes: credentialRowID, Valid: true}, pgtype.UUID{Bytes: userID, Valid: true})
}

func (e *Engine) ListCredentials(ctx context.Context, userID uuid.UUID) ([]db.WebauthnCredential, error) {
	q := db.New(e.pool)
	return q.ListWebauthnCredentialsForUser(ctx, pgtype.UUID{Bytes: userID, Valid: true})
}
