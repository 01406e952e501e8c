// Package apperr defines the operational error type shared by the domain services.
//
// An *Error carries the HTTP status, a stable machine-readable code and a
// message that is safe to show to clients. Anything that is not an *Error is
// treated as an internal failure by the API layer.
package apperr

import (
	"errors"
	"net/http"
)

const (
	CodeClientAuth         = "CLIENT_AUTH_ERROR"
	CodeTokenValidation    = "TOKEN_VALIDATION_ERROR"
	CodeAccessTokenMissing = "ACCESS_TOKEN_MISSING"
	CodeRefreshMissing     = "REFRESH_TOKEN_MISSING"
	CodeTokenBlacklisted   = "TOKEN_BLACKLISTED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeEmailExists        = "EMAIL_ALREADY_EXISTS"
	CodeValidation         = "VALIDATION_ERROR"
	CodeExpiredOTP         = "EXPIRED_OTP"
	CodeInvalidOTP         = "INVALID_OTP"
	CodeMaxAttempts        = "MAX_ATTEMPTS_EXCEEDED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeEmailService       = "EMAIL_SERVICE_ERROR"
	CodeStorageService     = "STORAGE_SERVICE_ERROR"
	CodeUnknownTransaction = "UNKNOWN_TRANSACTION_ERROR"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by status and code so wrapped copies of a
// sentinel still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Code == t.Code
}

// Operational reports whether the message is meant for clients.
func (e *Error) Operational() bool {
	return e.Status < http.StatusInternalServerError || e.Code != CodeInternal
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap attaches a cause to a copy of e. The sentinel itself is never mutated.
func (e *Error) Wrap(cause error) *Error {
	clone := *e
	clone.Err = cause
	return &clone
}

// WithField returns a copy of e that names the offending input field.
func (e *Error) WithField(field string) *Error {
	clone := *e
	clone.Field = field
	return &clone
}

// WithMessage returns a copy of e with a different client message.
func (e *Error) WithMessage(message string) *Error {
	clone := *e
	clone.Message = message
	return &clone
}

func Validation(field, message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Field: field}
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, CodeNotFound, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func Internal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error", Err: cause}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
