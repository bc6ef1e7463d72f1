package oidc

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/storage/db"
)

// UserInfo is the OIDC userinfo response: the caller's identity facts as
// known locally, derived from the Identity Token's subject rather than a
// fresh upstream round trip.
type UserInfo struct {
	Sub         string `json:"sub"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	MFAEnabled  bool   `json:"mfa_enabled"`
}

// Userinfo looks up the bearer's user record by subject. It is routed in
// the group any authenticated token kind may call, not in the public
// allow-list: it is exempt from tenant/role policy, not from
// authentication.
func (f *Facade) Userinfo(ctx context.Context, userID uuid.UUID) (*UserInfo, error) {
	q := db.New(f.pool)
	u, err := q.GetUserByID(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return nil, err
	}
	return &UserInfo{
		Sub:        userID.String(),
		Email:      u.Email,
		Name:       displayNameOf(u),
		MFAEnabled: u.MfaEnabled,
	}, nil
}
