// Package invite implements tenant membership invitations as signed,
// stateless tokens rather than a new database table: an invitation is
// fully described by its payload, so there is nothing to look up by id —
// only something to verify and then apply. Grounded on internal/crypto's
// AES-256-GCM Encryptor (itself adapted from the teacher's tenant secret
// encryption) reused here for tamper-evident opaque tokens instead of
// column encryption.
package invite

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/crypto"
)

const defaultTTL = 7 * 24 * time.Hour

// Payload is everything an invitation needs to carry; it round-trips
// through Issue/Parse as JSON wrapped in authenticated encryption, so a
// holder of the opaque token cannot forge or alter any field.
type Payload struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	InvitedBy uuid.UUID `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer mints and parses invitation tokens.
type Issuer struct {
	enc *crypto.Encryptor
}

func NewIssuer(enc *crypto.Encryptor) *Issuer {
	return &Issuer{enc: enc}
}

// Issue produces an opaque token encoding p, defaulting ExpiresAt to
// defaultTTL from now if unset.
func (i *Issuer) Issue(p Payload) (string, error) {
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = time.Now().Add(defaultTTL)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling invitation: %w", err)
	}
	token, err := i.enc.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("sealing invitation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Parse recovers and validates an invitation token, rejecting expired or
// tampered tokens. A tampered token and an expired one are both surfaced
// as the same "invalid_invitation" error so neither leaks which failure
// mode occurred.
func (i *Issuer) Parse(tok string) (Payload, error) {
	invalid := apperr.New(apperr.KindBadRequest, "invalid_invitation", "INVALID_INVITATION", "This invitation link is invalid or has expired")

	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return Payload{}, invalid
	}
	raw, err := i.enc.Decrypt(string(decoded))
	if err != nil {
		return Payload{}, invalid
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, invalid
	}
	if time.Now().After(p.ExpiresAt) {
		return Payload{}, invalid
	}
	return p, nil
}
