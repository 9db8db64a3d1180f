// Package apperror defines the error taxonomy shared by the booking core and
// the HTTP layer. Every rejected operation carries one of the codes below so
// callers can tell "pick another slot" apart from "not allowed" and "fix your
// input".
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeConflict          = "CONFLICT"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeEntityUnavailable = "ENTITY_UNAVAILABLE"
	CodeAuthExpired       = "AUTH_EXPIRED"
	CodeAuthMalformed     = "AUTH_MALFORMED"
	CodeAuthRevoked       = "AUTH_REVOKED"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Matching is by code, so any AppError built by the
// constructors below matches the sentinel of the same kind.
var (
	ErrValidation        = &AppError{Code: CodeValidation}
	ErrConflict          = &AppError{Code: CodeConflict}
	ErrForbidden         = &AppError{Code: CodeForbidden}
	ErrNotFound          = &AppError{Code: CodeNotFound}
	ErrInvalidTransition = &AppError{Code: CodeInvalidTransition}
	ErrEntityUnavailable = &AppError{Code: CodeEntityUnavailable}
	ErrAuthExpired       = &AppError{Code: CodeAuthExpired}
	ErrAuthMalformed     = &AppError{Code: CodeAuthMalformed}
	ErrAuthRevoked       = &AppError{Code: CodeAuthRevoked}
	ErrStoreUnavailable  = &AppError{Code: CodeStoreUnavailable}
	ErrInternal          = &AppError{Code: CodeInternal}
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) StatusCode() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// WithDetails merges details into the error's existing details.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// ErrorResponse is the JSON body written for a failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Response() ErrorResponse {
	return ErrorResponse{Code: e.Code, Message: e.Message, Details: e.Details}
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"resource": resource, "id": id},
	}
}

// InvalidTransition reports a state machine guard violation.
func InvalidTransition(from, event string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot %s a booking in state %s", event, from),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"from": from, "event": event},
	}
}

func EntityUnavailable(modelID string) *AppError {
	return &AppError{
		Code:       CodeEntityUnavailable,
		Message:    "model is not available for booking",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"model_id": modelID},
	}
}

func AuthExpired() *AppError {
	return &AppError{Code: CodeAuthExpired, Message: "credential expired", HTTPStatus: http.StatusUnauthorized}
}

func AuthMalformed(err error) *AppError {
	return &AppError{Code: CodeAuthMalformed, Message: "credential malformed", HTTPStatus: http.StatusUnauthorized, Err: err}
}

func AuthRevoked() *AppError {
	return &AppError{Code: CodeAuthRevoked, Message: "credential revoked", HTTPStatus: http.StatusUnauthorized}
}

// StoreUnavailable is returned once the durable store has failed past its
// retry budget. The caller may retry the whole operation.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Code:       CodeStoreUnavailable,
		Message:    "booking store is temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// AsAppError extracts the first AppError in err's chain, or wraps err as an
// internal error.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("an unexpected error occurred", err)
}

// IsAuth reports whether err is one of the session rejection kinds.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrAuthMalformed) || errors.Is(err, ErrAuthRevoked)
}
