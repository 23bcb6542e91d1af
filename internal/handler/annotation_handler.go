package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"pdf-review-server/internal/domain"
	apperrors "pdf-review-server/pkg/errors"
)

// AnnotationHandler serves the annotation CRUD surface and the auto-annotation
// pipeline endpoint.
type AnnotationHandler struct {
	annotationService domain.AnnotationService
	maxFileSize       int64
	logger            domain.Logger
}

func NewAnnotationHandler(annotationService domain.AnnotationService, maxFileSize int64, logger domain.Logger) *AnnotationHandler {
	return &AnnotationHandler{
		annotationService: annotationService,
		maxFileSize:       maxFileSize,
		logger:            logger,
	}
}

// collectingObserver buffers pipeline events so the handler can return them in
// a single response body.
type collectingObserver struct {
	progress []domain.AnnotationProgress
}

func (o *collectingObserver) OnProgress(p domain.AnnotationProgress) {
	o.progress = append(o.progress, p)
}

func (o *collectingObserver) OnTrace(tr domain.LocationTrace) {}

// AutoAnnotate runs the review pipeline on an uploaded PDF and returns the
// persisted annotations together with progress and location diagnostics.
func (h *AnnotationHandler) AutoAnnotate(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	documentID := mux.Vars(r)["documentId"]
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "File is empty")
		return
	}

	observer := &collectingObserver{}
	result, err := h.annotationService.PerformAutoAnnotation(r.Context(), user.ID, documentID, data, token, observer)
	if err != nil {
		h.writeServiceError(w, err, "Auto-annotation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"annotations": result.Annotations,
		"located":     result.Located,
		"defaulted":   result.Defaulted,
		"trace":       result.Trace,
		"progress":    observer.progress,
	})
}

// ListAnnotations returns all annotations of a document with their replies.
func (h *AnnotationHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	token, _ := GetTokenFromContext(r)

	documentID := mux.Vars(r)["documentId"]
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	annotations, err := h.annotationService.ListAnnotations(documentID, token)
	if err != nil {
		h.writeServiceError(w, err, "Failed to list annotations")
		return
	}
	if annotations == nil {
		annotations = []*domain.Annotation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"annotations": annotations,
		"count":       len(annotations),
	})
}

type createAnnotationRequest struct {
	DocumentID string  `json:"document_id"`
	Page       int     `json:"page"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Content    string  `json:"content"`
	Author     string  `json:"author"`
}

// CreateAnnotation persists a manual annotation.
func (h *AnnotationHandler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	var req createAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	annotation := &domain.Annotation{
		DocumentID: req.DocumentID,
		Page:       req.Page,
		X:          req.X,
		Y:          req.Y,
		Width:      req.Width,
		Height:     req.Height,
		Content:    req.Content,
		Author:     req.Author,
	}

	created, err := h.annotationService.CreateAnnotation(user.ID, annotation, token)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create annotation")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

type updateAnnotationRequest struct {
	Content string `json:"content"`
}

// UpdateAnnotation saves edited content. An empty update on a never-filled
// manual annotation discards it instead.
func (h *AnnotationHandler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	annotationID := mux.Vars(r)["id"]
	if annotationID == "" {
		writeError(w, http.StatusBadRequest, "Annotation ID is required")
		return
	}

	var req updateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.annotationService.UpdateAnnotation(user.ID, annotationID, req.Content, token)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update annotation")
		return
	}
	if updated == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"discarded": true})
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteAnnotation removes an annotation owned by the caller.
func (h *AnnotationHandler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	annotationID := mux.Vars(r)["id"]
	if annotationID == "" {
		writeError(w, http.StatusBadRequest, "Annotation ID is required")
		return
	}

	if err := h.annotationService.DeleteAnnotation(user.ID, annotationID, token); err != nil {
		h.writeServiceError(w, err, "Failed to delete annotation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type addReplyRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// AddReply appends a threaded reply under an annotation.
func (h *AnnotationHandler) AddReply(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	annotationID := mux.Vars(r)["id"]
	if annotationID == "" {
		writeError(w, http.StatusBadRequest, "Annotation ID is required")
		return
	}

	var req addReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	reply, err := h.annotationService.AddReply(user.ID, annotationID, req.Author, req.Content, token)
	if err != nil {
		h.writeServiceError(w, err, "Failed to add reply")
		return
	}

	writeJSON(w, http.StatusCreated, reply)
}

// writeServiceError maps service-layer errors to HTTP responses.
func (h *AnnotationHandler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	var validationErr *domain.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, domain.ErrAnnotationRunInProgress):
		writeError(w, http.StatusConflict, "An annotation run is already in progress")
	case errors.Is(err, domain.ErrAnnotationNotFound):
		writeError(w, http.StatusNotFound, "Annotation not found")
	case errors.Is(err, domain.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, domain.ErrLLMNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "Review model is not configured")
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &appErr):
		h.logger.Error(logMsg, err)
		writeError(w, appErr.StatusCode, appErr.Message)
	default:
		h.logger.Error(logMsg, err)
		writeError(w, http.StatusInternalServerError, logMsg)
	}
}
