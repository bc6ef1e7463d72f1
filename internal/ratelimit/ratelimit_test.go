package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"github.com/auth9/auth9/internal/ratelimit"
)

func TestAllow_BucketExhaustionPerKey(t *testing.T) {
	l := ratelimit.New([]ratelimit.Rule{
		{RouteTemplate: "/auth/authorize", Dimension: ratelimit.DimensionIP, Limit: rate.Limit(0), Burst: 2},
	}, nil)

	ctx := context.Background()
	if !l.Allow(ctx, "", "/auth/authorize", ratelimit.DimensionIP, "1.2.3.4") {
		t.Fatal("expected first request to pass")
	}
	if !l.Allow(ctx, "", "/auth/authorize", ratelimit.DimensionIP, "1.2.3.4") {
		t.Fatal("expected second request (within burst) to pass")
	}
	if l.Allow(ctx, "", "/auth/authorize", ratelimit.DimensionIP, "1.2.3.4") {
		t.Fatal("expected third request to exceed burst")
	}

	// A different key under the same route/dimension is an independent bucket.
	if !l.Allow(ctx, "", "/auth/authorize", ratelimit.DimensionIP, "5.6.7.8") {
		t.Fatal("expected a different IP to have its own bucket")
	}
}

func TestAllow_UnconfiguredRouteNeverLimited(t *testing.T) {
	l := ratelimit.New(nil, nil)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if !l.Allow(ctx, "", "/some/unconfigured/route", ratelimit.DimensionUser, "u1") {
			t.Fatalf("expected unconfigured route to never be limited, failed at iteration %d", i)
		}
	}
}

type staticOverride struct {
	rule ratelimit.Rule
}

func (s staticOverride) Override(ctx context.Context, tenantID, routeTemplate string) (ratelimit.Rule, bool) {
	return s.rule, true
}

func TestAllow_TenantOverrideAppliesTighterCeiling(t *testing.T) {
	l := ratelimit.New([]ratelimit.Rule{
		{RouteTemplate: "/auth/token", Dimension: ratelimit.DimensionClient, Limit: rate.Limit(0), Burst: 100},
	}, staticOverride{rule: ratelimit.Rule{Limit: rate.Limit(0), Burst: 1}})

	ctx := context.Background()
	if !l.Allow(ctx, "tenant-a", "/auth/token", ratelimit.DimensionClient, "client-1") {
		t.Fatal("expected first request to pass under override")
	}
	if l.Allow(ctx, "tenant-a", "/auth/token", ratelimit.DimensionClient, "client-1") {
		t.Fatal("expected second request to be rejected by the tighter tenant override")
	}
}

func TestPathGuard_RejectsDotSegments(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := ratelimit.PathGuard(next)

	for _, path := range []string{"/a/../b", "/./x", "/../../etc/passwd"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("path %q: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestPathGuard_AllowsCleanPaths(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := ratelimit.PathGuard(next)

	req := httptest.NewRequest(http.MethodGet, "/tenants/123/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected clean path to pass, got %d", rec.Code)
	}
}
