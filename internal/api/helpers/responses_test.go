package helpers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/auth9/auth9/internal/apperr"
)

func TestRespondData_WrapsInDataEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	RespondData(w, 201, map[string]string{"id": "abc"})

	if w.Code != 201 {
		t.Errorf("expected status 201, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["id"] != "abc" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestRespondPaginated_ComputesTotalPages(t *testing.T) {
	cases := []struct {
		total, perPage, wantPages int
	}{
		{10, 5, 2},
		{11, 5, 3},
		{0, 5, 0},
		{1, 5, 1},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		RespondPaginated(w, []int{}, 1, c.perPage, c.total)

		var body struct {
			Pagination struct {
				TotalPages int `json:"total_pages"`
			} `json:"pagination"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON body: %v", err)
		}
		if body.Pagination.TotalPages != c.wantPages {
			t.Errorf("total=%d perPage=%d: got %d total_pages, want %d",
				c.total, c.perPage, body.Pagination.TotalPages, c.wantPages)
		}
	}
}

func TestRespondAppError_UsesTypedErrorVerbatim(t *testing.T) {
	w := httptest.NewRecorder()
	appErr := apperr.New(apperr.KindNotFound, "tenant_not_found", "TENANT_NOT_FOUND", "no such tenant")

	RespondAppError(w, appErr)

	if w.Code != 404 {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error != "tenant_not_found" || body.Message != "no such tenant" || body.Code != "TENANT_NOT_FOUND" {
		t.Errorf("unexpected error envelope: %+v", body)
	}
}

func TestRespondAppError_UnknownErrorBecomesGenericInternal(t *testing.T) {
	w := httptest.NewRecorder()
	RespondAppError(w, errNotAnAppError{})

	if w.Code != 500 {
		t.Errorf("expected status 500 for an unrecognized error, got %d", w.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error != "internal_error" {
		t.Errorf("expected the generic internal_error slug to mask the raw error, got %q", body.Error)
	}
}

type errNotAnAppError struct{}

func (errNotAnAppError) Error() string { return "something exploded internally" }

func TestRespondError_GenericEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, 400, "bad input")

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error != "error" || body.Message != "bad input" || body.Code != "ERROR" {
		t.Errorf("unexpected envelope: %+v", body)
	}
}
