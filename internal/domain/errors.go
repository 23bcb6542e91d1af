package domain

import "errors"

// Domain errors
var (
	ErrAnnotationNotFound      = errors.New("annotation not found")
	ErrAccessDenied            = errors.New("access denied")
	ErrInvalidFile             = errors.New("invalid file")
	ErrAnnotationRunInProgress = errors.New("auto-annotation already in progress")
	ErrNoAnnotationsParsed     = errors.New("no annotations parsed from model output")
	ErrLLMNotConfigured        = errors.New("review model not configured")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
