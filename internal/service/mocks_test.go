package service

import (
	"context"
	"errors"
	"fmt"

	"pdf-review-server/internal/domain"
)

// Shared test doubles for the service package.

var errFault = errors.New("simulated fault")

type MockServiceLogger struct{}

func (l *MockServiceLogger) Info(msg string, fields ...interface{})             {}
func (l *MockServiceLogger) Error(msg string, err error, fields ...interface{}) {}
func (l *MockServiceLogger) Debug(msg string, fields ...interface{})            {}
func (l *MockServiceLogger) Warn(msg string, fields ...interface{})             {}

// fakeDocumentSource serves pre-built runs from memory so tests exercise the
// text-location core without parsing a real PDF.
type fakeDocumentSource struct {
	pages     [][]domain.TextRun
	sizes     []domain.PageSize
	failPages map[int]error
	closed    bool
}

func (f *fakeDocumentSource) PageCount() int { return len(f.pages) }

func (f *fakeDocumentSource) PageRuns(page int) ([]domain.TextRun, error) {
	if page < 0 || page >= len(f.pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	if err, ok := f.failPages[page]; ok {
		return nil, err
	}
	return f.pages[page], nil
}

func (f *fakeDocumentSource) PageSize(page int) (domain.PageSize, error) {
	if page < 0 || page >= len(f.sizes) {
		return domain.PageSize{}, fmt.Errorf("page %d out of range", page)
	}
	return f.sizes[page], nil
}

func (f *fakeDocumentSource) Close() error {
	f.closed = true
	return nil
}

// fakeLLM returns a canned response or error.
type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// MockAnnotationRepository keeps annotations in memory.
type MockAnnotationRepository struct {
	annotations map[string]*domain.Annotation
	replies     map[string][]domain.AnnotationReply
	saveBatches int
	failSave    error
}

func NewMockAnnotationRepository() *MockAnnotationRepository {
	return &MockAnnotationRepository{
		annotations: make(map[string]*domain.Annotation),
		replies:     make(map[string][]domain.AnnotationReply),
	}
}

func (m *MockAnnotationRepository) Create(annotation *domain.Annotation, token string) (*domain.Annotation, error) {
	if annotation.ID == "" {
		return nil, errors.New("annotation ID is required")
	}
	m.annotations[annotation.ID] = annotation
	return annotation, nil
}

func (m *MockAnnotationRepository) SaveBatch(ctx context.Context, annotations []*domain.Annotation, token string) error {
	if m.failSave != nil {
		return m.failSave
	}
	m.saveBatches++
	for _, a := range annotations {
		m.annotations[a.ID] = a
	}
	return nil
}

func (m *MockAnnotationRepository) ListByDocument(documentID string, token string) ([]*domain.Annotation, error) {
	var out []*domain.Annotation
	for _, a := range m.annotations {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockAnnotationRepository) GetByID(id string, token string) (*domain.Annotation, error) {
	if a, ok := m.annotations[id]; ok {
		return a, nil
	}
	return nil, domain.ErrAnnotationNotFound
}

func (m *MockAnnotationRepository) Update(annotation *domain.Annotation, token string) (*domain.Annotation, error) {
	if _, ok := m.annotations[annotation.ID]; !ok {
		return nil, domain.ErrAnnotationNotFound
	}
	m.annotations[annotation.ID] = annotation
	return annotation, nil
}

func (m *MockAnnotationRepository) Delete(userID string, id string, token string) error {
	if _, ok := m.annotations[id]; !ok {
		return domain.ErrAnnotationNotFound
	}
	delete(m.annotations, id)
	return nil
}

func (m *MockAnnotationRepository) AddReply(reply *domain.AnnotationReply, token string) (*domain.AnnotationReply, error) {
	m.replies[reply.AnnotationID] = append(m.replies[reply.AnnotationID], *reply)
	return reply, nil
}

// collectObserver records pipeline events in order.
type collectObserver struct {
	progress []domain.AnnotationProgress
	traces   []domain.LocationTrace
}

func (o *collectObserver) OnProgress(p domain.AnnotationProgress) { o.progress = append(o.progress, p) }
func (o *collectObserver) OnTrace(tr domain.LocationTrace)        { o.traces = append(o.traces, tr) }
