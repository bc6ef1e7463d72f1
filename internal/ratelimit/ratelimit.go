// Package ratelimit implements §4.10's Rate Limiter and Path Guard. It is
// adapted from the teacher's internal/api/middleware/ratelimit.go, which
// keyed a single token-bucket map by client IP; this generalizes the key
// to (route template, dimension) so user/client/IP buckets and tenant
// overrides can share the same limiter pool without unbounded cardinality.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Dimension is the priority-ordered identity a bucket is keyed on: the
// first one available for a request wins — principal user over
// authenticated client over bare IP. A client-supplied header such as
// tenant-id is deliberately never part of the key.
type Dimension string

const (
	DimensionUser   Dimension = "user"
	DimensionClient Dimension = "client"
	DimensionIP     Dimension = "ip"
)

// Rule is a bucket ceiling for one logical route template.
type Rule struct {
	RouteTemplate string
	Dimension     Dimension
	Limit         rate.Limit
	Burst         int
}

// Defaults mirror §4.10's recommended ceilings.
func Defaults() []Rule {
	return []Rule{
		{RouteTemplate: "/auth/authorize", Dimension: DimensionIP, Limit: rate.Every(time.Minute / 10), Burst: 10},
		{RouteTemplate: "/auth/token", Dimension: DimensionClient, Limit: rate.Every(time.Minute / 100), Burst: 20},
		{RouteTemplate: "/auth/forgot-password", Dimension: DimensionUser, Limit: rate.Every(time.Hour / 3), Burst: 3},
		{RouteTemplate: "__reads__", Dimension: DimensionUser, Limit: rate.Every(time.Minute / 100), Burst: 20},
		{RouteTemplate: "__writes__", Dimension: DimensionUser, Limit: rate.Every(time.Minute / 30), Burst: 10},
	}
}

// TenantOverrideSource resolves a per-tenant replacement Rule for a route
// template; absence means "use the global default" (Open Question
// decision: tenant-scoped overrides fall back to a global bucket).
type TenantOverrideSource interface {
	Override(ctx context.Context, tenantID, routeTemplate string) (Rule, bool)
}

// Limiter holds one *rate.Limiter per (route template, dimension, key)
// triple, created lazily and never actively evicted beyond the periodic
// sweep — mirrors the teacher's "full wipe is acceptable" cleanup loop,
// scaled to a bounded key set instead of raw IPs.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	rules     map[string]Rule
	overrides TenantOverrideSource
}

func New(rules []Rule, overrides TenantOverrideSource) *Limiter {
	l := &Limiter{
		buckets:   make(map[string]*rate.Limiter),
		rules:     make(map[string]Rule, len(rules)),
		overrides: overrides,
	}
	for _, r := range rules {
		l.rules[r.RouteTemplate] = r
	}
	go l.sweepLoop()
	return l
}

func (l *Limiter) sweepLoop() {
	for {
		time.Sleep(10 * time.Minute)
		l.mu.Lock()
		l.buckets = make(map[string]*rate.Limiter)
		l.mu.Unlock()
	}
}

// Allow reports whether a request against routeTemplate, identified by
// key under dimension, is within its bucket. tenantID may be empty for
// routes with no tenant context (e.g. /auth/authorize).
func (l *Limiter) Allow(ctx context.Context, tenantID, routeTemplate string, dim Dimension, key string) bool {
	rule, ok := l.rules[routeTemplate]
	if !ok {
		return true // unconfigured routes are not rate limited
	}
	if tenantID != "" && l.overrides != nil {
		if override, found := l.overrides.Override(ctx, tenantID, routeTemplate); found {
			rule = override
		}
	}

	bucketKey := strings.Join([]string{tenantID, routeTemplate, string(dim), key}, "|")

	l.mu.Lock()
	limiter, exists := l.buckets[bucketKey]
	if !exists {
		limiter = rate.NewLimiter(rule.Limit, rule.Burst)
		l.buckets[bucketKey] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// PathGuard rejects any request whose URL path contains a "." or ".."
// segment, applying URL decoding exactly once before the check, per
// §4.10's first pipeline layer.
func PathGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, segment := range strings.Split(r.URL.Path, "/") {
			if segment == "." || segment == ".." {
				http.Error(w, "invalid path", http.StatusBadRequest)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
