package domain

import (
	"context"
	"io"
	"time"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetMaxFileSize() int64
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetGCPProjectID() string
	GetGCPLocation() string
	GetLLMModel() string
	GetLLMTimeout() time.Duration
	GetLLMMaxRetries() int
	GetWordMatchThreshold() float64
	GetSequenceMatchThreshold() float64
}

// AnnotationRepository defines persistence for annotations and replies.
type AnnotationRepository interface {
	Create(annotation *Annotation, token string) (*Annotation, error)
	// SaveBatch persists a run's worth of annotations. Individual row failures
	// are logged and skipped; only a cancelled context aborts the batch.
	SaveBatch(ctx context.Context, annotations []*Annotation, token string) error
	ListByDocument(documentID string, token string) ([]*Annotation, error)
	GetByID(id string, token string) (*Annotation, error)
	Update(annotation *Annotation, token string) (*Annotation, error)
	Delete(userID string, id string, token string) error
	AddReply(reply *AnnotationReply, token string) (*AnnotationReply, error)
}

// PDFService exposes corpus extraction and interactive search over an
// uploaded document.
type PDFService interface {
	// ExtractText returns the flattened full-document corpus text and the
	// page count. Empty text with a nil error means extraction failed softly.
	ExtractText(pdfBytes []byte) (string, int, error)
	Search(pdfBytes []byte, opts SearchOptions) ([]SearchResult, error)
}

// AnnotationService defines the use-case operations for annotations.
type AnnotationService interface {
	// PerformAutoAnnotation runs the full pipeline: extract corpus, call the
	// review model, locate each fragment, assemble and persist annotations.
	// Refuses re-entry with ErrAnnotationRunInProgress while a run is active.
	PerformAutoAnnotation(ctx context.Context, userID, documentID string, pdfBytes []byte, token string, observer AnnotationObserver) (*AutoAnnotationResult, error)

	CreateAnnotation(userID string, annotation *Annotation, token string) (*Annotation, error)
	ListAnnotations(documentID string, token string) ([]*Annotation, error)
	// UpdateAnnotation saves edited content. Saving empty content on a manual
	// annotation whose content was never filled in discards it: the returned
	// annotation is nil with a nil error.
	UpdateAnnotation(userID, annotationID, content string, token string) (*Annotation, error)
	DeleteAnnotation(userID, annotationID string, token string) error
	AddReply(userID, annotationID, author, content string, token string) (*AnnotationReply, error)
}

// StorageService uploads raw document bytes to object storage.
type StorageService interface {
	Upload(ctx context.Context, path string, file io.Reader) error
}

// AuthService validates bearer tokens for the HTTP layer.
type AuthService interface {
	ValidateToken(token string) (*SupabaseUser, error)
}
