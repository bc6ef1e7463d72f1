package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/auth9/auth9/internal/apperr"
)

// dataEnvelope is the success shape: {"data": ...}.
type dataEnvelope struct {
	Data any `json:"data"`
}

type pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type paginatedEnvelope struct {
	Data       any        `json:"data"`
	Pagination pagination `json:"pagination"`
}

// errorEnvelope matches §6/§7: {"error": slug, "message": text, "code": UPPER_SNAKE, "details": ...}.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed_to_encode_json_response", "error", err)
	}
}

// RespondData wraps a successful result in the {"data": ...} envelope.
func RespondData(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, dataEnvelope{Data: data})
}

// RespondPaginated wraps a page of results plus pagination metadata.
func RespondPaginated(w http.ResponseWriter, data any, page, perPage, total int) {
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	RespondJSON(w, http.StatusOK, paginatedEnvelope{
		Data: data,
		Pagination: pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// RespondAppError never leaks internal error text: if err is a typed
// *apperr.Error its Message/Code are used verbatim; anything else is
// logged in full and surfaced to the caller as a generic internal error.
func RespondAppError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		slog.Error("unhandled_internal_error", "error", err)
		ae = apperr.ErrInternal
	}
	if ae.Kind == apperr.KindInternal {
		slog.Error("internal_error", "slug", ae.Slug, "cause", err)
	}
	RespondJSON(w, ae.Status(), errorEnvelope{
		Error:   ae.Slug,
		Message: ae.Message,
		Code:    ae.Code,
		Details: ae.Details,
	})
}

// RespondError is kept for call sites that don't have a typed apperr yet
// (e.g. framework-level decode failures) — it writes the same envelope
// shape with a generic slug/code.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, errorEnvelope{
		Error:   "error",
		Message: message,
		Code:    "ERROR",
	})
}
