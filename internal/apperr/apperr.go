// Package apperr implements the error taxonomy from the error handling
// design: a small set of typed kinds, each mapped to an HTTP status, carried
// as a single error type so handlers never have to hand-roll status codes.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindBadRequest         Kind = "bad_request"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindRateLimited        Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInternal           Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:         http.StatusUnprocessableEntity,
	KindBadRequest:         http.StatusBadRequest,
	KindUnauthorized:       http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindConflict:           http.StatusConflict,
	KindRateLimited:        http.StatusTooManyRequests,
	KindServiceUnavailable: http.StatusServiceUnavailable,
	KindInternal:           http.StatusInternalServerError,
}

// Error is the typed error carried from business logic to the HTTP/gRPC
// boundary. Message is safe to show to a caller; Details is optional
// structured context (never SQL fragments, stack traces, or file paths).
type Error struct {
	Kind    Kind
	Slug    string // machine-readable, e.g. "identity_token_not_allowed"
	Code    string // UPPER_SNAKE, e.g. "IDENTITY_TOKEN_NOT_ALLOWED"
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, slug, code, message string) *Error {
	return &Error{Kind: kind, Slug: slug, Code: code, Message: message}
}

func Wrap(kind Kind, slug, code, message string, cause error) *Error {
	return &Error{Kind: kind, Slug: slug, Code: code, Message: message, cause: cause}
}

func WithDetails(e *Error, details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// As is a convenience wrapper over errors.As for call sites that just want
// to know "is this already a typed apperr, and if so which one".
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Common, reusable instances for conditions that recur across packages.
var (
	ErrTokenRevoked = New(KindUnauthorized, "token_revoked", "TOKEN_REVOKED", "Token has been revoked")
	ErrTokenInvalid = New(KindUnauthorized, "token_invalid", "TOKEN_INVALID", "Invalid or malformed token")
	ErrTokenExpired = New(KindUnauthorized, "token_expired", "TOKEN_EXPIRED", "Token has expired")

	ErrIdentityTokenNotAllowed = New(KindForbidden, "identity_token_not_allowed", "IDENTITY_TOKEN_NOT_ALLOWED",
		"Identity token is only allowed for tenant selection and exchange")
	ErrCrossTenant = New(KindForbidden, "cross_tenant_forbidden", "CROSS_TENANT_FORBIDDEN",
		"Token is not bound to the requested tenant")
	ErrPlatformAdminRequired = New(KindForbidden, "platform_admin_required", "PLATFORM_ADMIN_REQUIRED",
		"This operation requires platform admin privileges")

	ErrPathTraversal = New(KindBadRequest, "path_traversal_rejected", "PATH_TRAVERSAL_REJECTED",
		"Request path is not allowed")

	ErrRevocationStoreUnavailable = New(KindServiceUnavailable, "revocation_store_unavailable", "REVOCATION_STORE_UNAVAILABLE",
		"Could not verify token revocation status")

	ErrNotFound = New(KindNotFound, "not_found", "NOT_FOUND", "Resource not found")
	ErrConflict = New(KindConflict, "conflict", "CONFLICT", "Conflicting state")

	ErrInternal = New(KindInternal, "internal_error", "INTERNAL_ERROR", "An unexpected error occurred")
)
