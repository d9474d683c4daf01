package errorx

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryInternal       ErrorCategory = "internal"
)

// APIError represents a structured API error
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"category"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// Is reports whether target carries the same error code. It lets callers
// match factory-built errors with errors.Is against the bare prototypes
// below without comparing detail payloads.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsCallerError reports whether the error is the caller's fault
// (bad input, missing entity, precondition failure) as opposed to a
// system failure.
func (e *APIError) IsCallerError() bool {
	return e.Category != CategoryInternal
}

// WithDetail returns a copy of the error with an added detail entry.
// The receiver is never mutated so the prototype errors stay shareable.
func (e *APIError) WithDetail(key string, value any) *APIError {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

func newError(code, message string, category ErrorCategory, status int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: status,
	}
}

// Prototype errors. Match with errors.Is; attach request-specific context
// with WithDetail, which copies.
var (
	ErrAppNotFound   = newError("app_not_found", "app not found", CategoryNotFound, http.StatusNotFound)
	ErrUserNotFound  = newError("user_not_found", "user not found", CategoryNotFound, http.StatusNotFound)
	ErrCardNotFound  = newError("card_not_found", "recharge card not found", CategoryNotFound, http.StatusNotFound)
	ErrLevelNotFound = newError("level_not_found", "member level not found", CategoryNotFound, http.StatusNotFound)

	ErrInsufficientPoints  = newError("insufficient_points", "insufficient points", CategoryValidation, http.StatusBadRequest)
	ErrCardAlreadyUsed     = newError("card_already_used", "recharge card already used", CategoryValidation, http.StatusBadRequest)
	ErrCardExpired         = newError("card_expired", "recharge card expired", CategoryValidation, http.StatusBadRequest)
	ErrInvalidCardPassword = newError("invalid_card_password", "card password mismatch", CategoryValidation, http.StatusBadRequest)

	ErrInvalidCredentials = newError("invalid_credentials", "invalid username or password", CategoryAuthentication, http.StatusUnauthorized)
	ErrUnauthorized       = newError("unauthorized", "unauthorized", CategoryAuthentication, http.StatusUnauthorized)
	ErrAppUnauthorized    = newError("app_unauthorized", "invalid app id or secret, or app disabled", CategoryAuthentication, http.StatusUnauthorized)

	ErrNotAMember        = newError("not_a_member", "membership required", CategoryAuthorization, http.StatusForbidden)
	ErrMembershipExpired = newError("membership_expired", "membership expired", CategoryAuthorization, http.StatusForbidden)

	ErrUserExists = newError("user_already_exists", "user already exists", CategoryConflict, http.StatusConflict)

	ErrConflict         = newError("concurrency_conflict", "operation conflicted with a concurrent update, please retry", CategoryConflict, http.StatusConflict)
	ErrStoreUnavailable = newError("store_unavailable", "persistent store unavailable", CategoryInternal, http.StatusInternalServerError)
)

// InvalidRequest builds a validation error from a binding failure.
func InvalidRequest(message string) *APIError {
	return newError("invalid_request", message, CategoryValidation, http.StatusBadRequest)
}

// MembershipExpired builds a membership-expired error carrying the stale
// expiry for client display.
func MembershipExpired(expiresAt time.Time) *APIError {
	return ErrMembershipExpired.WithDetail("member_expires_at", expiresAt.Format(time.RFC3339))
}
