package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/storage/db"
)

func withChiParam(param, value string) *context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(param, value)
	ctx := context.WithValue(context.Background(), chi.RouteCtxKey, rctx)
	return &ctx
}

func TestPathUUID_ParsesValidParam(t *testing.T) {
	id := uuid.New()
	ctx := withChiParam("id", id.String())
	r := httptest.NewRequest("GET", "/tenants/"+id.String(), nil).WithContext(*ctx)

	got, err := pathUUID(r, "id")
	if err != nil {
		t.Fatalf("pathUUID failed: %v", err)
	}
	if got != id {
		t.Errorf("got %v, want %v", got, id)
	}
}

func TestPathUUID_RejectsMalformedParam(t *testing.T) {
	ctx := withChiParam("id", "not-a-uuid")
	r := httptest.NewRequest("GET", "/tenants/not-a-uuid", nil).WithContext(*ctx)

	if _, err := pathUUID(r, "id"); err == nil {
		t.Error("expected an error for a malformed uuid param")
	}
}

func TestPathTenantID_OkFlagReflectsParseSuccess(t *testing.T) {
	id := uuid.New()
	ctx := withChiParam("id", id.String())
	r := httptest.NewRequest("GET", "/tenants/"+id.String(), nil).WithContext(*ctx)

	got, ok := pathTenantID(r)
	if !ok || got != id {
		t.Errorf("pathTenantID = (%v, %v), want (%v, true)", got, ok, id)
	}

	ctx2 := withChiParam("id", "garbage")
	r2 := httptest.NewRequest("GET", "/tenants/garbage", nil).WithContext(*ctx2)
	if _, ok := pathTenantID(r2); ok {
		t.Error("expected ok=false for a malformed tenant id")
	}
}

func TestPgUUID_NilUUIDIsInvalid(t *testing.T) {
	if got := pgUUID(uuid.Nil); got.Valid {
		t.Errorf("expected pgUUID(uuid.Nil) to be invalid, got %+v", got)
	}
	id := uuid.New()
	if got := pgUUID(id); !got.Valid || uuid.UUID(got.Bytes) != id {
		t.Errorf("pgUUID(%v) = %+v, expected a valid pgtype.UUID with matching bytes", id, got)
	}
}

func TestTenantToView_MapsFields(t *testing.T) {
	id := uuid.New()
	tenant := db.Tenant{
		ID:          pgtype.UUID{Bytes: id, Valid: true},
		Slug:        "acme",
		DisplayName: "Acme Corp",
		Status:      "active",
	}
	view := tenantToView(tenant)
	if view.ID != id.String() || view.Slug != "acme" || view.DisplayName != "Acme Corp" || view.Status != "active" {
		t.Errorf("unexpected view: %+v", view)
	}
}
