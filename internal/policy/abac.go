package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// evaluateABAC runs every rule in doc against (subject, resource, action, env)
// and returns the combined ABAC-only effect plus the ids of rules that
// matched on each side, for the simulate endpoint's reporting needs.
//
// Semantics per §4.3: evaluate all allow rules and all deny rules; deny
// overrides allow; no match at all is Abstain.
func evaluateABAC(doc ruleDocument, subj Subject, res Resource, action string, env Environment) (Effect, []uuid.UUID, []uuid.UUID) {
	var matchedAllow, matchedDeny []uuid.UUID

	for _, r := range doc.Rules {
		if !ruleMatches(r, subj, res, action, env) {
			continue
		}
		switch r.Effect {
		case EffectAllow:
			matchedAllow = append(matchedAllow, r.ID)
		case EffectDeny:
			matchedDeny = append(matchedDeny, r.ID)
		}
	}

	switch {
	case len(matchedDeny) > 0:
		return EffectDeny, matchedAllow, matchedDeny
	case len(matchedAllow) > 0:
		return EffectAllow, matchedAllow, matchedDeny
	default:
		return EffectAbstain, matchedAllow, matchedDeny
	}
}

func ruleMatches(r rule, subj Subject, res Resource, action string, env Environment) bool {
	if r.Action != "" && r.Action != action {
		return false
	}
	if !subjectMatches(r.Subject, subj) {
		return false
	}
	if !resourceMatches(r.Resource, res) {
		return false
	}
	if !envMatches(r.Env, env) {
		return false
	}
	return true
}

func subjectMatches(p subjectPredicate, subj Subject) bool {
	if len(p.Roles) > 0 && !containsAny(subj.Roles, p.Roles) {
		return false
	}
	if p.EmailDomain != "" && !strings.EqualFold(p.EmailDomain, subj.EmailDomain) {
		return false
	}
	if p.MFARequired != nil && *p.MFARequired != subj.MFAEnabled {
		return false
	}
	return true
}

func resourceMatches(p resourcePredicate, res Resource) bool {
	if p.Type != "" && p.Type != res.Type {
		return false
	}
	if p.OwnerTenant != "" && p.OwnerTenant != res.OwnerTenant {
		return false
	}
	for k, v := range p.Attributes {
		if res.Attributes[k] != v {
			return false
		}
	}
	return true
}

func envMatches(p envPredicate, env Environment) bool {
	if p.AfterMinute != nil && env.TimeOfDayMinutes < *p.AfterMinute {
		return false
	}
	if p.BeforeMinute != nil && env.TimeOfDayMinutes > *p.BeforeMinute {
		return false
	}
	if p.IPPrefix != "" && !strings.HasPrefix(env.IP, p.IPPrefix) {
		return false
	}
	return true
}

func containsAny(haystack, needles []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if set[n] {
			return true
		}
	}
	return false
}

// Evaluate runs the full two-stage pipeline described in §4.3: RBAC closure,
// then (if a published policy exists and its mode isn't disabled) the ABAC
// evaluator, combined per the spec's effect table. Shadow mode computes and
// logs the ABAC outcome but never lets it change the RBAC-only result.
func (e *Engine) Evaluate(ctx context.Context, subj Subject, tenantID, serviceID uuid.UUID, res Resource, action string, env Environment) (Decision, error) {
	roles, perms, err := e.ResolveRoles(ctx, subj.UserID, tenantID, serviceID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolving RBAC closure: %w", err)
	}
	subj.Roles = roles

	// RBAC alone decides permit/deny on whether the caller holds the named
	// permission; ABAC only ever narrows this down further (deny overrides),
	// it never grants what RBAC didn't.
	rbacPermit := permissionGranted(perms, action)

	d := Decision{RBACRoles: roles, RBACPerms: perms, ABACMode: ModeDisabled, ABACEffect: EffectAbstain}

	if !rbacPermit {
		d.Allowed = false
		return d, nil
	}

	ps, err := e.q.GetPolicySetByTenant(ctx, fromUUID(tenantID))
	if err != nil {
		// No published policy set for this tenant: RBAC result stands.
		d.Allowed = true
		return d, nil
	}
	d.ABACMode = Mode(ps.Mode)

	if d.ABACMode == ModeDisabled {
		d.Allowed = true
		return d, nil
	}

	version, err := e.q.GetPublishedVersion(ctx, ps.ID)
	if err != nil {
		// Nothing published yet; ABAC has nothing to say.
		d.Allowed = true
		return d, nil
	}

	doc, err := parseDocument(version.Document)
	if err != nil {
		return Decision{}, err
	}

	effect, allowIDs, denyIDs := evaluateABAC(doc, subj, res, action, env)
	d.ABACEffect = effect
	d.MatchedAllow = allowIDs
	d.MatchedDeny = denyIDs

	if d.ABACMode == ModeShadow {
		// Recorded as a structured abac_shadow_decision log line; never
		// affects d.Allowed here.
		slog.InfoContext(ctx, "abac_shadow_decision",
			"tenant_id", tenantID, "user_id", subj.UserID, "action", action,
			"abac_effect", effect, "matched_allow", allowIDs, "matched_deny", denyIDs)
		d.Allowed = true
		return d, nil
	}

	// enforce mode: RBAC permit + ABAC deny => deny, otherwise permit.
	d.Allowed = effect != EffectDeny
	return d, nil
}

func permissionGranted(perms []string, action string) bool {
	for _, p := range perms {
		if p == action {
			return true
		}
	}
	return false
}
