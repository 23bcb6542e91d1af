package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"pdf-review-server/internal/domain"
)

// PDFHandler serves document upload, corpus extraction and fragment search.
type PDFHandler struct {
	pdfService     domain.PDFService
	storageService domain.StorageService
	maxFileSize    int64
	logger         domain.Logger
}

func NewPDFHandler(pdfService domain.PDFService, storageService domain.StorageService, maxFileSize int64, logger domain.Logger) *PDFHandler {
	return &PDFHandler{
		pdfService:     pdfService,
		storageService: storageService,
		maxFileSize:    maxFileSize,
		logger:         logger,
	}
}

// readUploadedPDF pulls the "file" part out of a multipart request.
func (h *PDFHandler) readUploadedPDF(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return nil, "", false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "File is empty")
		return nil, "", false
	}

	return data, header.Filename, true
}

// UploadDocument stores the raw PDF in object storage under the user's prefix.
func (h *PDFHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	data, filename, ok := h.readUploadedPDF(w, r)
	if !ok {
		return
	}

	documentID := uuid.New().String()
	path := fmt.Sprintf("documents/%s/%s.pdf", user.ID, documentID)

	if err := h.storageService.Upload(r.Context(), path, bytes.NewReader(data)); err != nil {
		h.logger.Error("Document upload failed", err, "path", path)
		writeError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}

	h.logger.Info("Document uploaded", "document_id", documentID, "filename", filename, "size", len(data))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"document_id": documentID,
		"path":        path,
		"filename":    filename,
		"size":        len(data),
	})
}

// ExtractText returns the flattened corpus text with page delimiters.
func (h *PDFHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	data, _, ok := h.readUploadedPDF(w, r)
	if !ok {
		return
	}

	text, pageCount, err := h.pdfService.ExtractText(data)
	if err != nil {
		h.logger.Error("Text extraction failed", err)
		writeError(w, http.StatusUnprocessableEntity, "Failed to extract text from PDF")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"text":       text,
		"page_count": pageCount,
	})
}

// SearchDocument locates a text fragment in the uploaded PDF. The optional
// "page" form value is a zero-based page index restricting the scan; "first"
// short-circuits after the first hit.
func (h *PDFHandler) SearchDocument(w http.ResponseWriter, r *http.Request) {
	data, _, ok := h.readUploadedPDF(w, r)
	if !ok {
		return
	}

	query := r.FormValue("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	opts := domain.SearchOptions{Query: query}
	if pageStr := r.FormValue("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 0 {
			writeError(w, http.StatusBadRequest, "Invalid page index")
			return
		}
		opts.TargetPage = &page
	}
	if firstStr := r.FormValue("first"); firstStr != "" {
		first, err := strconv.ParseBool(firstStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid first flag")
			return
		}
		opts.ReturnFirst = first
	}

	results, err := h.pdfService.Search(data, opts)
	if err != nil {
		h.logger.Error("Document search failed", err, "query", query)
		writeError(w, http.StatusUnprocessableEntity, "Failed to search document")
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}
