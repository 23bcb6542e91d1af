package service

import (
	"pdf-review-server/internal/domain"
	apperrors "pdf-review-server/pkg/errors"
)

// PDFService exposes corpus extraction and interactive search to the HTTP
// layer, opening the document per call since runs are never persisted.
type PDFService struct {
	extractor *CorpusExtractor
	locator   *Locator
	logger    domain.Logger

	openDocument documentOpener
}

// NewPDFService creates the extraction/search facade.
func NewPDFService(extractor *CorpusExtractor, locator *Locator, logger domain.Logger) *PDFService {
	return &PDFService{
		extractor:    extractor,
		locator:      locator,
		logger:       logger,
		openDocument: OpenFitzDocument,
	}
}

// ExtractText returns the flattened corpus text and page count.
func (s *PDFService) ExtractText(pdfBytes []byte) (string, int, error) {
	src, err := s.openDocument(pdfBytes, s.logger)
	if err != nil {
		return "", 0, apperrors.NewProcessingError("Failed to open document", err)
	}
	defer src.Close()

	return s.extractor.ExtractFullText(src), src.PageCount(), nil
}

// Search runs the locator against an uploaded document.
func (s *PDFService) Search(pdfBytes []byte, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	src, err := s.openDocument(pdfBytes, s.logger)
	if err != nil {
		return nil, apperrors.NewProcessingError("Failed to open document", err)
	}
	defer src.Close()

	return s.locator.Search(src, opts)
}
