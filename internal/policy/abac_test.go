package policy

import (
	"testing"

	"github.com/google/uuid"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestEvaluateABAC_DenyOverridesAllow(t *testing.T) {
	allowID := uuid.New()
	denyID := uuid.New()
	doc := ruleDocument{Rules: []rule{
		{ID: allowID, Effect: EffectAllow, Action: "user:delete", Subject: subjectPredicate{Roles: []string{"admin"}}},
		{ID: denyID, Effect: EffectDeny, Action: "user:delete", Resource: resourcePredicate{Attributes: map[string]string{"protected": "true"}}},
	}}

	subj := Subject{Roles: []string{"admin"}}
	res := Resource{Attributes: map[string]string{"protected": "true"}}

	effect, allow, deny := evaluateABAC(doc, subj, res, "user:delete", Environment{})

	if effect != EffectDeny {
		t.Fatalf("expected deny to override allow, got %s", effect)
	}
	if len(allow) != 1 || allow[0] != allowID {
		t.Errorf("expected matched allow to include %s, got %v", allowID, allow)
	}
	if len(deny) != 1 || deny[0] != denyID {
		t.Errorf("expected matched deny to include %s, got %v", denyID, deny)
	}
}

func TestEvaluateABAC_NoMatchAbstains(t *testing.T) {
	doc := ruleDocument{Rules: []rule{
		{ID: uuid.New(), Effect: EffectAllow, Action: "user:read", Subject: subjectPredicate{Roles: []string{"viewer"}}},
	}}

	effect, allow, deny := evaluateABAC(doc, Subject{Roles: []string{"member"}}, Resource{}, "user:read", Environment{})

	if effect != EffectAbstain {
		t.Fatalf("expected abstain when no rule matches, got %s", effect)
	}
	if len(allow) != 0 || len(deny) != 0 {
		t.Errorf("expected no matched rules, got allow=%v deny=%v", allow, deny)
	}
}

func TestSubjectMatches_MFARequired(t *testing.T) {
	pred := subjectPredicate{MFARequired: boolPtr(true)}

	if subjectMatches(pred, Subject{MFAEnabled: false}) {
		t.Error("expected predicate requiring MFA to reject a subject without it")
	}
	if !subjectMatches(pred, Subject{MFAEnabled: true}) {
		t.Error("expected predicate requiring MFA to accept a subject with it")
	}
}

func TestSubjectMatches_EmailDomainCaseInsensitive(t *testing.T) {
	pred := subjectPredicate{EmailDomain: "Example.COM"}
	if !subjectMatches(pred, Subject{EmailDomain: "example.com"}) {
		t.Error("expected email domain match to be case-insensitive")
	}
}

func TestEnvMatches_TimeWindow(t *testing.T) {
	pred := envPredicate{AfterMinute: intPtr(540), BeforeMinute: intPtr(1020)} // 09:00-17:00

	if !envMatches(pred, Environment{TimeOfDayMinutes: 600}) {
		t.Error("expected 10:00 to fall within the business-hours window")
	}
	if envMatches(pred, Environment{TimeOfDayMinutes: 100}) {
		t.Error("expected 01:40 to fall outside the business-hours window")
	}
}

func TestEnvMatches_IPPrefix(t *testing.T) {
	pred := envPredicate{IPPrefix: "10.0."}
	if !envMatches(pred, Environment{IP: "10.0.0.5"}) {
		t.Error("expected matching IP prefix to pass")
	}
	if envMatches(pred, Environment{IP: "192.168.1.5"}) {
		t.Error("expected non-matching IP prefix to fail")
	}
}

func TestPermissionGranted(t *testing.T) {
	perms := []string{"user:read", "user:write"}
	if !permissionGranted(perms, "user:read") {
		t.Error("expected user:read to be granted")
	}
	if permissionGranted(perms, "user:delete") {
		t.Error("expected user:delete to not be granted")
	}
}
