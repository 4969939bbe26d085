package errorutil

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Error codes surfaced to clients.
const (
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeAccountDisabled        = "ACCOUNT_DISABLED"
	CodeEmailAlreadyRegistered = "EMAIL_ALREADY_REGISTERED"
	CodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	CodeRateLimited            = "RATE_LIMITED"
	CodeUnauthenticated        = "UNAUTHENTICATED"
	CodeForbidden              = "FORBIDDEN"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewInvalidCredentials is returned for unknown emails and wrong passwords alike.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid email or password", http.StatusUnauthorized, nil)
}

func NewAccountDisabled() error {
	return NewDomainError(CodeAccountDisabled, "account is disabled", http.StatusForbidden, nil)
}

func NewEmailAlreadyRegistered() error {
	return NewDomainError(CodeEmailAlreadyRegistered, "email already registered", http.StatusBadRequest, nil)
}

// NewInvalidRefreshToken wraps the internal reason so it can be logged but never rendered.
func NewInvalidRefreshToken(reason error) error {
	return &DomainError{
		Code:       CodeInvalidRefreshToken,
		Message:    "invalid refresh token",
		HTTPStatus: http.StatusUnauthorized,
		Err:        reason,
	}
}

// NewUnauthenticated wraps the internal reason so it can be logged but never rendered.
func NewUnauthenticated(reason error) error {
	return &DomainError{
		Code:       CodeUnauthenticated,
		Message:    "authentication required",
		HTTPStatus: http.StatusUnauthorized,
		Err:        reason,
	}
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewRateLimited carries the retry-after hint in whole seconds, rounded up.
func NewRateLimited(retryAfter time.Duration) error {
	return NewDomainError(CodeRateLimited, "too many requests", http.StatusTooManyRequests, map[string]any{
		"retry_after_seconds": RetryAfterSeconds(retryAfter),
	})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
