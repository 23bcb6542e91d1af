package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeProcessing   ErrorType = "processing"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeNetwork      ErrorType = "network"

	// Review-model fault classes. They are all recoverable in the sense that
	// the caller retried before surfacing them; the type picks the user-facing
	// message and status code.
	ErrorTypeLLMAuth        ErrorType = "llm_auth"
	ErrorTypeLLMRateLimit   ErrorType = "llm_rate_limit"
	ErrorTypeLLMUnavailable ErrorType = "llm_unavailable"
	ErrorTypeParse          ErrorType = "parse"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Details:    detail,
		StatusCode: http.StatusBadRequest,
	}
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProcessing,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewLLMAuthError signals the review-model call failed authentication.
func NewLLMAuthError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeLLMAuth,
		Message:    "Review model rejected the service credentials",
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewLLMRateLimitError signals the review-model call was rate limited.
func NewLLMRateLimitError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeLLMRateLimit,
		Message:    "Review model is rate limiting requests, try again later",
		StatusCode: http.StatusTooManyRequests,
		Cause:      cause,
	}
}

// NewLLMUnavailableError signals the review model timed out or errored server-side.
func NewLLMUnavailableError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeLLMUnavailable,
		Message:    "Review model is unavailable",
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewParseError signals the model output yielded no usable annotation records.
func NewParseError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeParse,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
