package errors

import (
	"fmt"
)

// ScoutError is the structured error type for KeywordScout.
// It provides rich context for error handling, logging, and user presentation.
type ScoutError struct {
	// Code is the unique error code (e.g., "ERR_351_RATE_LIMITED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Network, RateLimit, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *ScoutError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScoutError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ScoutError.
func (e *ScoutError) Is(target error) bool {
	if t, ok := target.(*ScoutError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScoutError) WithDetail(key, value string) *ScoutError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new ScoutError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScoutError {
	return &ScoutError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScoutError from an existing error.
// The error's message becomes the ScoutError message.
func Wrap(code string, err error) *ScoutError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ScoutError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are retryable.
func NetworkError(message string, cause error) *ScoutError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// RateLimitError creates a throttling error for an explicit 429 response.
func RateLimitError(message string) *ScoutError {
	return New(ErrCodeRateLimited, message, nil)
}

// CaptchaError creates an error for a detected challenge page.
// Captcha errors are not retryable; the affected source should be
// disabled for the remainder of the run.
func CaptchaError(source string) *ScoutError {
	return New(ErrCodeCaptchaDetected, "challenge page detected", nil).
		WithDetail("source", source)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ScoutError {
	return New(ErrCodeInvalidInput, message, cause)
}

// WeightsError creates an error for scoring weights that do not sum to 1.0.
func WeightsError(sum float64) *ScoutError {
	return New(ErrCodeInvalidWeights,
		fmt.Sprintf("scoring weights must sum to 1.0, got %.3f", sum), nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ScoutError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a ScoutError with the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScoutError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScoutError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ScoutError.
// Returns empty string if not a ScoutError.
func GetCode(err error) string {
	if se, ok := err.(*ScoutError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ScoutError.
// Returns empty string if not a ScoutError.
func GetCategory(err error) Category {
	if se, ok := err.(*ScoutError); ok {
		return se.Category
	}
	return ""
}
