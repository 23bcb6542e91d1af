package domain

import "time"

// NoSpecificLocation is the sentinel the model emits when a comment has no
// anchoring fragment in the source text.
const NoSpecificLocation = "no specific location"

// Annotation categories and severities as produced by the reviewer model.
const (
	AnnotationTypeStructure = "structure"
	AnnotationTypeFormat    = "format"
	AnnotationTypeWriting   = "writing"
	AnnotationTypeContent   = "content"
	AnnotationTypePraise    = "praise"

	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// RawAnnotationRecord is the model's structured output for one review comment,
// as parsed from a KEY: value block. Created once per response block, consumed
// once by the locator, discarded after assembly.
type RawAnnotationRecord struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Page        int    `json:"page"` // 1-based page hint from the model; may be wrong
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
	Selected    string `json:"selected"`
}

// Validate checks the required fields. Records failing validation are
// discarded silently by the parser.
func (r *RawAnnotationRecord) Validate() error {
	if r.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if r.Description == "" {
		return &ValidationError{Field: "description", Message: "description is required"}
	}
	return nil
}

// HasLocation reports whether the record carries a usable anchor fragment.
func (r *RawAnnotationRecord) HasLocation() bool {
	return r.Selected != "" && r.Selected != NoSpecificLocation
}

// AIAnnotation carries the original model fields of an auto-generated
// annotation plus the location trace explaining where its box came from.
type AIAnnotation struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
	Selected    string `json:"selected"`
	Merged      string `json:"merged"` // display string: quote, description, suggestion

	Success    bool   `json:"success"`  // true when the fragment was actually located
	Phase      string `json:"phase"`    // location protocol label
	Strategy   string `json:"strategy"` // matcher strategy, empty when not located
	HintedPage int    `json:"hinted_page"` // 1-based as asserted by the model
	ActualPage int    `json:"actual_page"` // 1-based page the box ended up on
}

// AnnotationReply is one threaded reply under an annotation.
type AnnotationReply struct {
	ID           string    `json:"id"`
	AnnotationID string    `json:"annotation_id"`
	UserID       string    `json:"user_id"`
	Author       string    `json:"author"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Annotation is the final user-facing record. Coordinates are viewport
// coordinates (top-left origin) on the given 0-based page.
type Annotation struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	DocumentID string  `json:"document_id"`
	Page       int     `json:"page"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Content    string  `json:"content"`
	Author     string  `json:"author"`

	AIAnnotation *AIAnnotation     `json:"ai_annotation,omitempty"`
	Replies      []AnnotationReply `json:"replies,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required fields before persistence.
func (a *Annotation) Validate() error {
	if a.ID == "" {
		return &ValidationError{Field: "id", Message: "annotation ID is required"}
	}
	if a.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if a.DocumentID == "" {
		return &ValidationError{Field: "document_id", Message: "document ID is required"}
	}
	if a.Page < 0 {
		return &ValidationError{Field: "page", Message: "page must not be negative"}
	}
	return nil
}

// AnnotationProgress is one human-readable status event emitted while an
// auto-annotation run advances.
type AnnotationProgress struct {
	Stage   string `json:"stage"` // extracting, reviewing, locating, saving, done
	Message string `json:"message"`
	Current int    `json:"current"` // record being located, 1-based; 0 outside the locate loop
	Total   int    `json:"total"`
}

// LocationTrace is one diagnostics entry per processed fragment. It is the
// only ground truth for why a highlight appears where it does.
type LocationTrace struct {
	Title      string  `json:"title"`
	Selected   string  `json:"selected"`
	Found      bool    `json:"found"`
	Phase      string  `json:"phase"`
	Strategy   string  `json:"strategy,omitempty"`
	HintedPage int     `json:"hinted_page"` // 1-based
	ActualPage int     `json:"actual_page"` // 1-based
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Fallback   bool    `json:"fallback"`
}

// AnnotationObserver receives the pipeline's finite, non-restartable sequence
// of progress and trace events.
type AnnotationObserver interface {
	OnProgress(p AnnotationProgress)
	OnTrace(tr LocationTrace)
}

// AutoAnnotationResult is the outcome of one full auto-annotation run.
type AutoAnnotationResult struct {
	Annotations []*Annotation   `json:"annotations"`
	Located     int             `json:"located"`
	Defaulted   int             `json:"defaulted"`
	Trace       []LocationTrace `json:"trace"`
}
