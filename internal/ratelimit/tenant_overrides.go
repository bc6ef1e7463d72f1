package ratelimit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/time/rate"

	"github.com/auth9/auth9/internal/storage/db"
)

// overrideDoc is the JSON shape stored under platform_settings'
// "ratelimit_override:<route-template>" key for a tenant scope; Window is
// parsed with time.ParseDuration the same way config.RateLimitOverride is.
type overrideDoc struct {
	Limit  int    `json:"limit"`
	Window string `json:"window"`
	Burst  int    `json:"burst"`
}

// SettingsOverrideSource resolves per-tenant rate-limit overrides from the
// platform_settings table rather than process config, so an operator can
// tighten a noisy tenant's ceiling without a redeploy.
type SettingsOverrideSource struct {
	q *db.Queries
}

func NewSettingsOverrideSource(q *db.Queries) *SettingsOverrideSource {
	return &SettingsOverrideSource{q: q}
}

func (s *SettingsOverrideSource) Override(ctx context.Context, tenantID, routeTemplate string) (Rule, bool) {
	id, err := uuid.Parse(tenantID)
	if err != nil {
		return Rule{}, false
	}
	setting, err := s.q.GetSetting(ctx, db.ScopeTenant, pgtype.UUID{Bytes: id, Valid: true}, "ratelimit_override:"+routeTemplate)
	if err != nil {
		return Rule{}, false
	}
	var doc overrideDoc
	if err := json.Unmarshal(setting.Value, &doc); err != nil {
		return Rule{}, false
	}
	window, err := time.ParseDuration(doc.Window)
	if err != nil || doc.Limit <= 0 {
		return Rule{}, false
	}
	return Rule{RouteTemplate: routeTemplate, Limit: rate.Every(window / time.Duration(doc.Limit)), Burst: doc.Burst}, true
}
