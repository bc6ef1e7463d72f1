// Package policy is the RBAC+ABAC Policy Engine: it compiles role→permission
// closures and evaluates attribute rules in disabled/shadow/enforce modes.
//
// Modeled on DavidHoenisch-locky's auth/rbac.Service (a casbin.Enforcer
// wrapping a store), but the ABAC half is a hand-rolled predicate evaluator
// rather than a casbin matcher: casbin's effect combinator is a single
// some(p.eft == allow) expression and cannot express "RBAC permit + ABAC
// deny => deny, shadow mode never changes the RBAC result" without
// smuggling that logic back out into Go anyway. See DESIGN.md.
package policy

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/storage/db"
)

// MaxRoleDepth bounds the parent-chain walk in roles.go; §3's invariant.
const MaxRoleDepth = 8

// Mode is a policy set's enforcement mode.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeShadow   Mode = "shadow"
	ModeEnforce  Mode = "enforce"
)

// Effect is a rule's outcome, or the combined decision's outcome.
type Effect string

const (
	EffectAllow   Effect = "allow"
	EffectDeny    Effect = "deny"
	EffectAbstain Effect = "abstain"
)

// Decision is the engine's output for one (subject, resource, action, environment)
// evaluation, carrying enough detail for the simulate endpoint (§4.3) to
// report which rules fired.
type Decision struct {
	Allowed      bool
	RBACRoles    []string
	RBACPerms    []string
	ABACEffect   Effect
	ABACMode     Mode
	MatchedAllow []uuid.UUID
	MatchedDeny  []uuid.UUID
}

// Engine ties the RBAC closure walk (roles.go) to the ABAC rule evaluator
// (abac.go), consulting cache.Store for the memoized role/permission set
// before falling back to storage.
type Engine struct {
	q     *db.Queries
	cache *cache.Store
}

func NewEngine(q *db.Queries, c *cache.Store) *Engine {
	return &Engine{q: q, cache: c}
}

// Subject is the principal side of an ABAC evaluation.
type Subject struct {
	UserID      uuid.UUID
	Roles       []string
	EmailDomain string
	MFAEnabled  bool
}

// Resource is the object side of an ABAC evaluation.
type Resource struct {
	Type        string
	OwnerTenant string
	Attributes  map[string]string
}

// Environment carries request-time context an ABAC predicate may match on.
type Environment struct {
	TimeOfDayMinutes int // minutes since midnight, UTC
	IP               string
}

// ruleDocument is the JSON shape stored in PolicySetVersion.Document.
type ruleDocument struct {
	Rules []rule `json:"rules"`
}

type rule struct {
	ID         uuid.UUID         `json:"id"`
	Effect     Effect             `json:"effect"`
	Subject    subjectPredicate   `json:"subject"`
	Resource   resourcePredicate  `json:"resource"`
	Action     string             `json:"action"`
	Env        envPredicate       `json:"environment"`
}

type subjectPredicate struct {
	Roles       []string `json:"roles,omitempty"`
	EmailDomain string   `json:"email_domain,omitempty"`
	MFARequired *bool    `json:"mfa_required,omitempty"`
}

type resourcePredicate struct {
	Type        string            `json:"type,omitempty"`
	OwnerTenant string            `json:"owner_tenant,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type envPredicate struct {
	AfterMinute  *int   `json:"after_minute,omitempty"`
	BeforeMinute *int   `json:"before_minute,omitempty"`
	IPPrefix     string `json:"ip_prefix,omitempty"`
}

// parseDocument unmarshals a policy version's raw document.
func parseDocument(raw json.RawMessage) (ruleDocument, error) {
	var doc ruleDocument
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parsing policy document: %w", err)
	}
	return doc, nil
}

func toUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}

func fromUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: id != uuid.Nil}
}

func uuidsToPgtype(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		out[i] = fromUUID(id)
	}
	return out
}
