package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the platform.
type ErrorCode string

// Skill invocation error codes. These are the only codes an invocation
// envelope may carry; every failure inside a skill run is classified into
// one of them before it leaves the runner.
const (
	ErrInvalidAction         ErrorCode = "INVALID_ACTION"
	ErrInvalidInput          ErrorCode = "INVALID_INPUT"
	ErrProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"
	ErrTimeout               ErrorCode = "TIMEOUT"
	ErrUpstreamError         ErrorCode = "UPSTREAM_ERROR"
)

// Platform error codes, used by the HTTP surface and infrastructure.
const (
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrForbidden     ErrorCode = "FORBIDDEN"
	ErrRateLimited   ErrorCode = "RATE_LIMITED"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Skill      string    `json:"skill,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message. Retryable
// is initialized from the code's default and can be overridden.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: DefaultRetryable(code)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithSkill sets the skill name.
func (e *Error) WithSkill(skill string) *Error {
	e.Skill = skill
	return e
}

// DefaultRetryable reports whether errors of the given code are retryable
// unless the construction site says otherwise. Timeouts and rate limits are
// transient; validation and configuration failures are not. UPSTREAM_ERROR
// defaults to non-retryable and is upgraded per upstream status.
func DefaultRetryable(code ErrorCode) bool {
	switch code {
	case ErrTimeout, ErrRateLimited:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// AsError unwraps err to a *Error if one exists in its chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
