package service

import (
	"context"
	"errors"
	"testing"

	"pdf-review-server/internal/domain"
	apperrors "pdf-review-server/pkg/errors"
)

func newTestAnnotationService(repo domain.AnnotationRepository, llm domain.LLMClient, src domain.DocumentSource) *AnnotationService {
	svc := NewAnnotationService(repo, llm, NewCorpusExtractor(&MockServiceLogger{}), newTestLocator(), &MockServiceLogger{})
	svc.openDocument = func(pdfBytes []byte, logger domain.Logger) (domain.DocumentSource, error) {
		return src, nil
	}
	return svc
}

const reviewOutput = `TYPE: writing
SEVERITY: high
PAGE: 3
TITLE: Awkward phrasing
DESCRIPTION: The sentence reads clumsily.
SUGGESTION: Rephrase it.
SELECTED: quick  brown
---
TYPE: praise
SEVERITY: low
PAGE: 9
TITLE: Good structure
DESCRIPTION: Sections follow a clear order.
SELECTED: no specific location
`

func TestPerformAutoAnnotation_EndToEnd(t *testing.T) {
	repo := NewMockAnnotationRepository()
	llm := &fakeLLM{response: reviewOutput}
	src := threePageDoc()
	svc := newTestAnnotationService(repo, llm, src)
	obs := &collectObserver{}

	result, err := svc.PerformAutoAnnotation(context.Background(), "user-1", "doc-1", []byte("%PDF"), "token", obs)
	if err != nil {
		t.Fatalf("PerformAutoAnnotation() error = %v", err)
	}

	if len(result.Annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(result.Annotations))
	}
	if result.Located != 1 || result.Defaulted != 1 {
		t.Fatalf("expected 1 located and 1 defaulted, got %d/%d", result.Located, result.Defaulted)
	}

	located := result.Annotations[0]
	if located.Page != 2 {
		t.Fatalf("expected located annotation on page index 2, got %d", located.Page)
	}
	// The fragment straddles two runs, so the paragraph fallback carries the
	// hit and anchors the middle run.
	if located.X != 140 {
		t.Fatalf("expected anchor X 140, got %v", located.X)
	}
	if located.Y != 792-(700+12) {
		t.Fatalf("expected viewport Y 80, got %v", located.Y)
	}
	if located.AIAnnotation == nil {
		t.Fatal("expected AI annotation payload")
	}
	if located.AIAnnotation.Strategy != string(StrategyClean) {
		t.Fatalf("expected clean strategy, got %q", located.AIAnnotation.Strategy)
	}
	if located.AIAnnotation.Phase != domain.LocationDirectPageHit {
		t.Fatalf("expected phase %q, got %q", domain.LocationDirectPageHit, located.AIAnnotation.Phase)
	}
	if located.AIAnnotation.ActualPage != 3 {
		t.Fatalf("expected actual page 3, got %d", located.AIAnnotation.ActualPage)
	}
	if located.Author != "AI Reviewer" {
		t.Fatalf("unexpected author %q", located.Author)
	}

	// Page hint 9 on a three page document clamps to the last page and takes
	// the stock fallback box.
	defaulted := result.Annotations[1]
	if defaulted.Page != 2 {
		t.Fatalf("expected clamped page index 2, got %d", defaulted.Page)
	}
	if defaulted.X != 50 || defaulted.Y != 50 {
		t.Fatalf("expected fallback box at (50, 50), got (%v, %v)", defaulted.X, defaulted.Y)
	}
	if defaulted.AIAnnotation.Phase != domain.LocationNoSelectionText {
		t.Fatalf("expected phase %q, got %q", domain.LocationNoSelectionText, defaulted.AIAnnotation.Phase)
	}

	if repo.saveBatches != 1 {
		t.Fatalf("expected one batch save, got %d", repo.saveBatches)
	}
	if len(repo.annotations) != 2 {
		t.Fatalf("expected 2 persisted annotations, got %d", len(repo.annotations))
	}

	if len(result.Trace) != 2 || len(obs.traces) != 2 {
		t.Fatalf("expected 2 trace entries, got %d/%d", len(result.Trace), len(obs.traces))
	}
	if !result.Trace[0].Found || result.Trace[1].Found {
		t.Fatalf("unexpected trace outcomes: %+v", result.Trace)
	}

	stages := make([]string, 0, len(obs.progress))
	for _, p := range obs.progress {
		stages = append(stages, p.Stage)
	}
	want := []string{"extracting", "reviewing", "locating", "locating", "saving", "done"}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("expected stages %v, got %v", want, stages)
		}
	}
}

func TestPerformAutoAnnotation_FallbackBoxesStack(t *testing.T) {
	const output = `TITLE: first
DESCRIPTION: d
PAGE: 1
SELECTED: no specific location
---
TITLE: second
DESCRIPTION: d
PAGE: 1
SELECTED: no specific location
---
TITLE: third
DESCRIPTION: d
PAGE: 1
SELECTED: no specific location
`
	repo := NewMockAnnotationRepository()
	svc := newTestAnnotationService(repo, &fakeLLM{response: output}, threePageDoc())

	result, err := svc.PerformAutoAnnotation(context.Background(), "user-1", "doc-1", []byte("%PDF"), "token", nil)
	if err != nil {
		t.Fatalf("PerformAutoAnnotation() error = %v", err)
	}
	if len(result.Annotations) != 3 {
		t.Fatalf("expected 3 annotations, got %d", len(result.Annotations))
	}

	for i, wantY := range []float64{50, 80, 110} {
		ann := result.Annotations[i]
		if ann.Page != 0 {
			t.Fatalf("annotation %d: expected page 0, got %d", i, ann.Page)
		}
		if ann.X != 50 || ann.Y != wantY {
			t.Fatalf("annotation %d: expected box at (50, %v), got (%v, %v)", i, wantY, ann.X, ann.Y)
		}
	}
}

func TestPerformAutoAnnotation_RefusesConcurrentRun(t *testing.T) {
	svc := newTestAnnotationService(NewMockAnnotationRepository(), &fakeLLM{response: reviewOutput}, threePageDoc())
	svc.running = true

	_, err := svc.PerformAutoAnnotation(context.Background(), "user-1", "doc-1", []byte("%PDF"), "token", nil)
	if !errors.Is(err, domain.ErrAnnotationRunInProgress) {
		t.Fatalf("expected ErrAnnotationRunInProgress, got %v", err)
	}
}

func TestPerformAutoAnnotation_RunGuardReleases(t *testing.T) {
	repo := NewMockAnnotationRepository()
	svc := newTestAnnotationService(repo, &fakeLLM{response: reviewOutput}, threePageDoc())

	if _, err := svc.PerformAutoAnnotation(context.Background(), "u", "d", []byte("%PDF"), "t", nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := svc.PerformAutoAnnotation(context.Background(), "u", "d", []byte("%PDF"), "t", nil); err != nil {
		t.Fatalf("second run after completion failed: %v", err)
	}
}

func TestPerformAutoAnnotation_NoLLMConfigured(t *testing.T) {
	svc := newTestAnnotationService(NewMockAnnotationRepository(), nil, threePageDoc())

	_, err := svc.PerformAutoAnnotation(context.Background(), "user-1", "doc-1", []byte("%PDF"), "token", nil)
	if !errors.Is(err, domain.ErrLLMNotConfigured) {
		t.Fatalf("expected ErrLLMNotConfigured, got %v", err)
	}
}

func TestPerformAutoAnnotation_LLMFailureAborts(t *testing.T) {
	repo := NewMockAnnotationRepository()
	svc := newTestAnnotationService(repo, &fakeLLM{err: errFault}, threePageDoc())

	_, err := svc.PerformAutoAnnotation(context.Background(), "user-1", "doc-1", []byte("%PDF"), "token", nil)
	if !errors.Is(err, errFault) {
		t.Fatalf("expected the model fault to surface, got %v", err)
	}
	if repo.saveBatches != 0 {
		t.Fatal("nothing must be persisted when the model call fails")
	}
}

func TestPerformAutoAnnotation_UnparseableOutput(t *testing.T) {
	svc := newTestAnnotationService(NewMockAnnotationRepository(), &fakeLLM{response: "free-form prose, no blocks"}, threePageDoc())

	_, err := svc.PerformAutoAnnotation(context.Background(), "user-1", "doc-1", []byte("%PDF"), "token", nil)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeParse) {
		t.Fatalf("expected parse error type, got %v", err)
	}
	if !errors.Is(err, domain.ErrNoAnnotationsParsed) {
		t.Fatalf("expected wrapped ErrNoAnnotationsParsed, got %v", err)
	}
}

func TestPerformAutoAnnotation_EmptyDocument(t *testing.T) {
	svc := newTestAnnotationService(NewMockAnnotationRepository(), &fakeLLM{response: reviewOutput}, &fakeDocumentSource{})

	_, err := svc.PerformAutoAnnotation(context.Background(), "user-1", "doc-1", []byte("%PDF"), "token", nil)
	if err == nil {
		t.Fatal("expected error for empty corpus")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
}

func TestMergeAnnotationText(t *testing.T) {
	rec := domain.RawAnnotationRecord{
		Description: "The claim lacks support.",
		Suggestion:  "Add a citation.",
		Selected:    "the quick brown fox",
	}

	got := mergeAnnotationText(rec)
	want := "> the quick brown fox\n\nThe claim lacks support.\n\nSuggestion: Add a citation."
	if got != want {
		t.Fatalf("mergeAnnotationText() = %q, want %q", got, want)
	}

	rec.Selected = domain.NoSpecificLocation
	rec.Suggestion = ""
	if got := mergeAnnotationText(rec); got != "The claim lacks support." {
		t.Fatalf("expected bare description, got %q", got)
	}
}

func TestUpdateAnnotation_DiscardsNeverFilledNote(t *testing.T) {
	repo := NewMockAnnotationRepository()
	repo.annotations["ann-1"] = &domain.Annotation{
		ID: "ann-1", UserID: "user-1", DocumentID: "doc-1", Content: "",
	}
	svc := newTestAnnotationService(repo, nil, nil)

	updated, err := svc.UpdateAnnotation("user-1", "ann-1", "   ", "token")
	if err != nil {
		t.Fatalf("UpdateAnnotation() error = %v", err)
	}
	if updated != nil {
		t.Fatalf("expected discard (nil annotation), got %+v", updated)
	}
	if _, ok := repo.annotations["ann-1"]; ok {
		t.Fatal("expected annotation deleted from repository")
	}
}

func TestUpdateAnnotation_EmptyContentKeepsAIAnnotation(t *testing.T) {
	repo := NewMockAnnotationRepository()
	repo.annotations["ann-1"] = &domain.Annotation{
		ID: "ann-1", UserID: "user-1", DocumentID: "doc-1", Content: "",
		AIAnnotation: &domain.AIAnnotation{Title: "t"},
	}
	svc := newTestAnnotationService(repo, nil, nil)

	updated, err := svc.UpdateAnnotation("user-1", "ann-1", "", "token")
	if err != nil {
		t.Fatalf("UpdateAnnotation() error = %v", err)
	}
	if updated == nil {
		t.Fatal("AI annotations must never be discarded by an empty edit")
	}
}

func TestUpdateAnnotation_SavesContent(t *testing.T) {
	repo := NewMockAnnotationRepository()
	repo.annotations["ann-1"] = &domain.Annotation{
		ID: "ann-1", UserID: "user-1", DocumentID: "doc-1", Content: "old",
	}
	svc := newTestAnnotationService(repo, nil, nil)

	updated, err := svc.UpdateAnnotation("user-1", "ann-1", "new content", "token")
	if err != nil {
		t.Fatalf("UpdateAnnotation() error = %v", err)
	}
	if updated.Content != "new content" {
		t.Fatalf("expected updated content, got %q", updated.Content)
	}
}

func TestUpdateAnnotation_WrongUser(t *testing.T) {
	repo := NewMockAnnotationRepository()
	repo.annotations["ann-1"] = &domain.Annotation{
		ID: "ann-1", UserID: "user-1", DocumentID: "doc-1", Content: "old",
	}
	svc := newTestAnnotationService(repo, nil, nil)

	_, err := svc.UpdateAnnotation("intruder", "ann-1", "hijack", "token")
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestCreateAnnotation_FillsDefaults(t *testing.T) {
	repo := NewMockAnnotationRepository()
	svc := newTestAnnotationService(repo, nil, nil)

	created, err := svc.CreateAnnotation("user-1", &domain.Annotation{DocumentID: "doc-1", Page: 1}, "token")
	if err != nil {
		t.Fatalf("CreateAnnotation() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}
	if created.UserID != "user-1" {
		t.Fatalf("expected owner user-1, got %q", created.UserID)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps set")
	}
}

func TestCreateAnnotation_RejectsInvalid(t *testing.T) {
	svc := newTestAnnotationService(NewMockAnnotationRepository(), nil, nil)

	if _, err := svc.CreateAnnotation("user-1", &domain.Annotation{Page: 0}, "token"); err == nil {
		t.Fatal("expected validation error for missing document ID")
	}
	if _, err := svc.CreateAnnotation("user-1", nil, "token"); err == nil {
		t.Fatal("expected error for nil annotation")
	}
}

func TestAddReply_Validation(t *testing.T) {
	svc := newTestAnnotationService(NewMockAnnotationRepository(), nil, nil)

	if _, err := svc.AddReply("user-1", "", "me", "hello", "token"); err == nil {
		t.Fatal("expected error for missing annotation ID")
	}
	if _, err := svc.AddReply("user-1", "ann-1", "me", "  ", "token"); err == nil {
		t.Fatal("expected error for empty content")
	}

	reply, err := svc.AddReply("user-1", "ann-1", "me", "hello", "token")
	if err != nil {
		t.Fatalf("AddReply() error = %v", err)
	}
	if reply.ID == "" || reply.AnnotationID != "ann-1" || reply.Content != "hello" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}
