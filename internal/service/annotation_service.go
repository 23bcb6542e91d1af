package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pdf-review-server/internal/domain"
	apperrors "pdf-review-server/pkg/errors"

	"github.com/google/uuid"
)

// Fallback placement for fragments that could not be located: a fixed box
// near the top-left of the hinted page, stepped down per prior unlocated
// annotation on the same page so they stack instead of overlapping.
const (
	fallbackX      = 50.0
	fallbackY      = 50.0
	fallbackYStep  = 30.0
	fallbackWidth  = 200.0
	fallbackHeight = 24.0
)

// documentOpener lets tests substitute an in-memory document source.
type documentOpener func(pdfBytes []byte, logger domain.Logger) (domain.DocumentSource, error)

// AnnotationService implements the auto-annotation pipeline and the manual
// annotation use cases.
type AnnotationService struct {
	repo      domain.AnnotationRepository
	llm       domain.LLMClient
	extractor *CorpusExtractor
	locator   *Locator
	logger    domain.Logger

	openDocument documentOpener

	// Single-flight guard: the pipeline mutates shared annotation state
	// incrementally, so a second run is refused while one is active.
	mu      sync.Mutex
	running bool
}

// NewAnnotationService wires the pipeline dependencies. llm may be nil when
// the review model is not configured; auto-annotation then fails fast.
func NewAnnotationService(
	repo domain.AnnotationRepository,
	llm domain.LLMClient,
	extractor *CorpusExtractor,
	locator *Locator,
	logger domain.Logger,
) *AnnotationService {
	return &AnnotationService{
		repo:         repo,
		llm:          llm,
		extractor:    extractor,
		locator:      locator,
		logger:       logger,
		openDocument: OpenFitzDocument,
	}
}

func (s *AnnotationService) beginRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return domain.ErrAnnotationRunInProgress
	}
	s.running = true
	return nil
}

func (s *AnnotationService) endRun() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// PerformAutoAnnotation runs the whole pipeline for one document. Records
// are located one at a time, sequentially, because per-fragment progress
// reporting is part of the contract. Only review-model and parse faults
// abort the run; page faults and location misses are absorbed and traced.
func (s *AnnotationService) PerformAutoAnnotation(ctx context.Context, userID, documentID string, pdfBytes []byte, token string, observer domain.AnnotationObserver) (*domain.AutoAnnotationResult, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMNotConfigured
	}
	if err := s.beginRun(); err != nil {
		return nil, err
	}
	defer s.endRun()

	src, err := s.openDocument(pdfBytes, s.logger)
	if err != nil {
		return nil, apperrors.NewProcessingError("Failed to open document", err)
	}
	defer src.Close()

	notify(observer, domain.AnnotationProgress{Stage: "extracting", Message: "Extracting document text"})
	corpus := s.extractor.ExtractFullText(src)
	if strings.TrimSpace(corpus) == "" {
		return nil, apperrors.NewProcessingError("Document contains no extractable text", nil)
	}

	notify(observer, domain.AnnotationProgress{Stage: "reviewing", Message: "Asking the review model for comments"})
	content, err := s.llm.Complete(ctx, buildReviewPrompt(corpus))
	if err != nil {
		s.logger.Error("Review model call failed, aborting run", err, "document_id", documentID)
		return nil, err
	}

	records := ParseAnnotationBlocks(content)
	if len(records) == 0 {
		s.logger.Warn("Model output yielded no annotation records", "document_id", documentID, "output_len", len(content))
		return nil, apperrors.NewParseError("Model output yielded no annotation records", domain.ErrNoAnnotationsParsed)
	}

	result := &domain.AutoAnnotationResult{}
	fallbackPerPage := make(map[int]int)
	now := time.Now()

	for i, rec := range records {
		notify(observer, domain.AnnotationProgress{
			Stage:   "locating",
			Message: fmt.Sprintf("Locating %q", rec.Title),
			Current: i + 1,
			Total:   len(records),
		})

		loc := s.locator.LocateFragment(src, rec)
		ann := s.assembleAnnotation(userID, documentID, loc, src.PageCount(), fallbackPerPage, now)

		tr := domain.LocationTrace{
			Title:      rec.Title,
			Selected:   rec.Selected,
			Found:      loc.Success,
			Phase:      loc.Phase,
			HintedPage: rec.Page,
			ActualPage: ann.Page + 1,
			X:          ann.X,
			Y:          ann.Y,
			Fallback:   !loc.Success,
		}
		if loc.Result != nil {
			tr.Strategy = loc.Result.Strategy
		}
		if observer != nil {
			observer.OnTrace(tr)
		}
		result.Trace = append(result.Trace, tr)

		if loc.Success {
			result.Located++
		} else {
			result.Defaulted++
		}
		result.Annotations = append(result.Annotations, ann)
	}

	notify(observer, domain.AnnotationProgress{Stage: "saving", Message: "Saving annotations"})
	if err := s.repo.SaveBatch(ctx, result.Annotations, token); err != nil {
		return nil, fmt.Errorf("failed to save annotations: %w", err)
	}

	notify(observer, domain.AnnotationProgress{
		Stage:   "done",
		Message: fmt.Sprintf("Produced %d annotations (%d located, %d defaulted)", len(result.Annotations), result.Located, result.Defaulted),
	})
	s.logger.Info("Auto-annotation run complete",
		"document_id", documentID, "annotations", len(result.Annotations),
		"located", result.Located, "defaulted", result.Defaulted)
	return result, nil
}

// assembleAnnotation merges one location outcome with the model's commentary
// into a final annotation, assigning deterministic stacked fallback
// coordinates when location failed.
func (s *AnnotationService) assembleAnnotation(userID, documentID string, loc domain.LocationResult, pageCount int, fallbackPerPage map[int]int, now time.Time) *domain.Annotation {
	rec := loc.Record
	ann := &domain.Annotation{
		ID:         uuid.New().String(),
		UserID:     userID,
		DocumentID: documentID,
		Content:    mergeAnnotationText(rec),
		Author:     "AI Reviewer",
		CreatedAt:  now,
		UpdatedAt:  now,
		AIAnnotation: &domain.AIAnnotation{
			Type:        rec.Type,
			Severity:    rec.Severity,
			Title:       rec.Title,
			Description: rec.Description,
			Suggestion:  rec.Suggestion,
			Selected:    rec.Selected,
			Merged:      mergeAnnotationText(rec),
			Success:     loc.Success,
			Phase:       loc.Phase,
			HintedPage:  rec.Page,
		},
	}

	if loc.Success && loc.Result != nil {
		res := loc.Result
		ann.Page = res.Page
		ann.X = res.ViewportCoordinates.X
		ann.Y = res.ViewportCoordinates.Y
		ann.Width = res.ViewportCoordinates.Width
		ann.Height = res.ViewportCoordinates.Height
		ann.AIAnnotation.Strategy = res.Strategy
		ann.AIAnnotation.ActualPage = res.Page + 1
		return ann
	}

	page := 0
	if rec.Page >= 1 {
		page = rec.Page - 1
	}
	if page >= pageCount {
		page = pageCount - 1
	}
	if page < 0 {
		page = 0
	}

	step := fallbackPerPage[page]
	fallbackPerPage[page]++

	ann.Page = page
	ann.X = fallbackX
	ann.Y = fallbackY + float64(step)*fallbackYStep
	ann.Width = fallbackWidth
	ann.Height = fallbackHeight
	ann.AIAnnotation.ActualPage = page + 1
	return ann
}

// mergeAnnotationText builds the display string: selected quote, then
// description, then suggestion.
func mergeAnnotationText(rec domain.RawAnnotationRecord) string {
	var sb strings.Builder
	if rec.HasLocation() {
		sb.WriteString("> ")
		sb.WriteString(rec.Selected)
		sb.WriteString("\n\n")
	}
	sb.WriteString(rec.Description)
	if rec.Suggestion != "" {
		sb.WriteString("\n\nSuggestion: ")
		sb.WriteString(rec.Suggestion)
	}
	return sb.String()
}

func notify(observer domain.AnnotationObserver, p domain.AnnotationProgress) {
	if observer != nil {
		observer.OnProgress(p)
	}
}

// buildReviewPrompt frames the corpus for the review model and pins the
// block format the parser expects.
func buildReviewPrompt(corpus string) string {
	var sb strings.Builder
	sb.WriteString("You are a meticulous document reviewer. Read the document below and produce review comments.\n\n")
	sb.WriteString("For every comment output exactly one block with these lines:\n")
	sb.WriteString("TYPE: structure|format|writing|content|praise\n")
	sb.WriteString("SEVERITY: high|medium|low\n")
	sb.WriteString("PAGE: <page number the passage appears on>\n")
	sb.WriteString("TITLE: <short title>\n")
	sb.WriteString("DESCRIPTION: <what you observed>\n")
	sb.WriteString("SUGGESTION: <how to improve it>\n")
	sb.WriteString("SELECTED: <short verbatim fragment copied from the document, or \"no specific location\">\n")
	sb.WriteString("Separate blocks with a line containing only ---\n")
	sb.WriteString("Copy SELECTED exactly from the document text. Keep it under 120 characters.\n\n")
	sb.WriteString("---------------------\n")
	sb.WriteString(corpus)
	sb.WriteString("\n---------------------\n")
	return sb.String()
}

// CreateAnnotation stores a manually created annotation.
func (s *AnnotationService) CreateAnnotation(userID string, annotation *domain.Annotation, token string) (*domain.Annotation, error) {
	if annotation == nil {
		return nil, fmt.Errorf("annotation is required")
	}
	annotation.UserID = userID
	if annotation.ID == "" {
		annotation.ID = uuid.New().String()
	}
	now := time.Now()
	if annotation.CreatedAt.IsZero() {
		annotation.CreatedAt = now
	}
	annotation.UpdatedAt = now

	if err := annotation.Validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(annotation, token)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Annotation created", "user_id", userID, "document_id", annotation.DocumentID, "annotation_id", created.ID)
	return created, nil
}

// ListAnnotations returns all annotations of a document.
func (s *AnnotationService) ListAnnotations(documentID string, token string) ([]*domain.Annotation, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document_id is required")
	}
	return s.repo.ListByDocument(documentID, token)
}

// UpdateAnnotation saves edited content. Saving empty content on a manual
// annotation whose content was never filled in deletes it instead: the user
// opened an empty note and backed out, so nothing worth keeping exists.
// The discard is signalled by a nil annotation with a nil error.
func (s *AnnotationService) UpdateAnnotation(userID, annotationID, content string, token string) (*domain.Annotation, error) {
	existing, err := s.repo.GetByID(annotationID, token)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrAnnotationNotFound
	}
	if existing.UserID != userID {
		return nil, domain.ErrAccessDenied
	}

	content = strings.TrimSpace(content)
	if content == "" && strings.TrimSpace(existing.Content) == "" && existing.AIAnnotation == nil {
		if err := s.repo.Delete(userID, annotationID, token); err != nil {
			return nil, err
		}
		s.logger.Debug("Discarded never-filled annotation", "annotation_id", annotationID)
		return nil, nil
	}

	existing.Content = content
	existing.UpdatedAt = time.Now()
	return s.repo.Update(existing, token)
}

// DeleteAnnotation removes an annotation by explicit user action.
func (s *AnnotationService) DeleteAnnotation(userID, annotationID string, token string) error {
	if annotationID == "" {
		return fmt.Errorf("annotation_id is required")
	}
	return s.repo.Delete(userID, annotationID, token)
}

// AddReply appends a threaded reply under an annotation.
func (s *AnnotationService) AddReply(userID, annotationID, author, content string, token string) (*domain.AnnotationReply, error) {
	if annotationID == "" {
		return nil, fmt.Errorf("annotation_id is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	reply := &domain.AnnotationReply{
		ID:           uuid.New().String(),
		AnnotationID: annotationID,
		UserID:       userID,
		Author:       author,
		Content:      content,
		CreatedAt:    time.Now(),
	}
	return s.repo.AddReply(reply, token)
}
