package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes
const (
	// Transient errors (safe to retry with backoff)
	CodeRateLimited = "RATE_LIMITED"
	CodeTimeout     = "TIMEOUT"
	CodeUnavailable = "UNAVAILABLE"

	// Per-owner fatal errors
	CodeAuthExpired = "AUTH_EXPIRED"
	CodeConfigError = "CONFIG_ERROR"

	// Per-message errors
	CodeBadPayload    = "BAD_PAYLOAD"
	CodeExternalError = "EXTERNAL_ERROR"

	// Data integrity
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeConflict      = "CONFLICT"

	// Validation / internal
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Transient errors
func RateLimited(service string, err error) *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: fmt.Sprintf("rate limited by %s", service),
		Status:  http.StatusTooManyRequests,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

func Timeout(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("operation timed out: %s", operation),
		Status:  http.StatusGatewayTimeout,
		Err:     err,
	}
}

func Unavailable(service string, err error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: fmt.Sprintf("%s unavailable", service),
		Status:  http.StatusServiceUnavailable,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// Per-owner fatal errors
func AuthExpired(owner string) *AppError {
	return &AppError{
		Code:    CodeAuthExpired,
		Message: "mailbox authorization expired, re-authentication required",
		Status:  http.StatusUnauthorized,
		Details: map[string]any{"owner": owner},
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// Per-message errors
func BadPayload(messageID string, err error) *AppError {
	return &AppError{
		Code:    CodeBadPayload,
		Message: "malformed provider payload",
		Status:  http.StatusUnprocessableEntity,
		Details: map[string]any{"message_id": messageID},
		Err:     err,
	}
}

func ExternalError(service string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalError,
		Message: fmt.Sprintf("external service error: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// Resource errors
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: fmt.Sprintf("%s already exists", resource),
		Status:  http.StatusConflict,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: fmt.Sprintf("database error: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// transientMarkers covers providers that signal throttling in prose
// rather than a status code.
var transientMarkers = []string{
	"rate limit",
	"quota",
	"too many requests",
	"connection reset",
	"connection refused",
	"timeout",
	"deadline exceeded",
	"no such host",
	"temporarily unavailable",
}

// IsTransient reports whether the error is worth retrying with backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeRateLimited, CodeTimeout, CodeUnavailable:
			return true
		case CodeAuthExpired, CodeConfigError, CodeBadPayload:
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsAuthExpired reports whether the error requires owner re-authentication.
func IsAuthExpired(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == CodeAuthExpired
}

// IsDuplicate reports whether the error is a uniqueness conflict.
// Duplicate inserts of idempotent rows are treated as success by callers.
func IsDuplicate(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) &&
		(appErr.Code == CodeAlreadyExists || appErr.Code == CodeConflict)
}

// Helper functions
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
