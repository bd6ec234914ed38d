// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBrowserNotFound     = errors.New("chrome browser not found")
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrRendererReleased    = errors.New("renderer already released")
	ErrNavigationTimeout   = errors.New("navigation timeout")
	ErrNavigationFailed    = errors.New("navigation failed")
	ErrMalformedCandidate  = errors.New("malformed candidate")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrParseError          = errors.New("failed to parse document")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeRendererUnavailable ErrorCode = "RENDERER_UNAVAILABLE"
	ErrCodeNavigationTimeout   ErrorCode = "NAVIGATION_TIMEOUT"
	ErrCodeNavigationFailed    ErrorCode = "NAVIGATION_FAILED"
	ErrCodeMalformedCandidate  ErrorCode = "MALFORMED_CANDIDATE"
	ErrCodeValidation          ErrorCode = "VALIDATION"
	ErrCodeParseError          ErrorCode = "PARSE_ERROR"
)

// sentinelFor maps codes to the sentinel that errors.Is should also match
var sentinelFor = map[ErrorCode]error{
	ErrCodeRendererUnavailable: ErrRendererUnavailable,
	ErrCodeNavigationTimeout:   ErrNavigationTimeout,
	ErrCodeNavigationFailed:    ErrNavigationFailed,
	ErrCodeMalformedCandidate:  ErrMalformedCandidate,
	ErrCodeParseError:          ErrParseError,
}

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	if s, ok := sentinelFor[e.Code]; ok && s == target {
		return true
	}
	return errors.Is(e.Underlying, target)
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Retry:      false,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// Unavailable wraps a renderer start-up failure. The run cannot continue.
func Unavailable(backend string, err error) *EngineError {
	return NewEngineError(ErrCodeRendererUnavailable, "failed to start "+backend+" renderer", err).
		WithRetry().
		WithDetail("backend", backend)
}

// NavigationFailed wraps a navigation error that produced no markup at all.
func NavigationFailed(url string, err error) *EngineError {
	return NewEngineError(ErrCodeNavigationFailed, "navigation produced no document", err).
		WithDetail("url", url)
}

// Retryable reports whether the failed operation may be attempted again
func (e *EngineError) Retryable() bool {
	return e.Retry
}

// IsRetryable reports whether err is an EngineError marked for retry
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retry
	}
	return false
}
