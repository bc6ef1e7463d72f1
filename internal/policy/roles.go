package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/auth9/auth9/internal/cache"
)

const userRolesCacheTTL = 5 * time.Minute

// roleClosure is the cached shape stored under cache.KeyUserRoles.
type roleClosure struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// ResolveRoles performs the RBAC stage of §4.3: fetch the roles directly
// assigned to (user, tenant) restricted to serviceID, expand each by its
// parent chain (depth <= MaxRoleDepth, cycle-free because the chain walk
// only ever follows existing parent_id edges forward), and union the
// permission closures. A positive cache hit short-circuits the whole walk.
func (e *Engine) ResolveRoles(ctx context.Context, userID, tenantID, serviceID uuid.UUID) ([]string, []string, error) {
	key := cache.KeyUserRoles(userID.String(), tenantID.String(), serviceID.String())

	if e.cache != nil {
		if raw, err := e.cache.Get(ctx, key); err == nil {
			var rc roleClosure
			if jsonErr := json.Unmarshal(raw, &rc); jsonErr == nil {
				return rc.Roles, rc.Permissions, nil
			}
		}
	}

	directRoles, err := e.q.ListRolesForMembership(ctx, fromUUID(tenantID), fromUUID(userID), fromUUID(serviceID))
	if err != nil {
		return nil, nil, fmt.Errorf("listing direct roles: %w", err)
	}

	seen := make(map[uuid.UUID]bool)
	var roleNames []string
	var roleIDs []uuid.UUID
	for _, r := range directRoles {
		chain, err := e.q.GetRoleParentChain(ctx, r.ID, MaxRoleDepth)
		if err != nil {
			return nil, nil, fmt.Errorf("walking parent chain for role %s: %w", r.Name, err)
		}
		for _, c := range chain {
			id := toUUID(c.ID)
			if seen[id] {
				continue
			}
			seen[id] = true
			roleNames = append(roleNames, c.Name)
			roleIDs = append(roleIDs, id)
		}
	}

	permCodes, err := e.q.ListPermissionCodesForRoles(ctx, uuidsToPgtype(roleIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("unioning permission closures: %w", err)
	}

	if e.cache != nil {
		if payload, err := json.Marshal(roleClosure{Roles: roleNames, Permissions: permCodes}); err == nil {
			_ = e.cache.Set(ctx, key, payload, userRolesCacheTTL)
		}
	}

	return roleNames, permCodes, nil
}

// InvalidateRoleCache clears the memoized closure for one (user, tenant,
// service) key. Its only caller is the member-role update handler; role
// assignment, unassignment, membership removal and ABAC publish do not
// call it, so those changes reach ResolveRoles once userRolesCacheTTL
// expires.
func (e *Engine) InvalidateRoleCache(ctx context.Context, userID, tenantID, serviceID uuid.UUID) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.InvalidateUserRoles(ctx, userID.String(), tenantID.String(), serviceID.String())
}
