package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"pdf-review-server/internal/config"
)

// NewRouter builds the HTTP routing table and wires middleware.
func NewRouter(container *config.Container) http.Handler {
	router := mux.NewRouter()

	pdfHandler := NewPDFHandler(
		container.PDFService,
		container.StorageService,
		container.Config.GetMaxFileSize(),
		container.Logger,
	)
	annotationHandler := NewAnnotationHandler(
		container.AnnotationService,
		container.Config.GetMaxFileSize(),
		container.Logger,
	)
	authMiddleware := NewAuthMiddleware(container.AuthService, container.Logger)

	// Health check (no auth)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// Protected API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Middleware)

	api.HandleFunc("/documents/upload", pdfHandler.UploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/extract", pdfHandler.ExtractText).Methods(http.MethodPost)
	api.HandleFunc("/documents/{documentId}/search", pdfHandler.SearchDocument).Methods(http.MethodPost)

	api.HandleFunc("/documents/{documentId}/auto-annotate", annotationHandler.AutoAnnotate).Methods(http.MethodPost)
	api.HandleFunc("/documents/{documentId}/annotations", annotationHandler.ListAnnotations).Methods(http.MethodGet)
	api.HandleFunc("/annotations", annotationHandler.CreateAnnotation).Methods(http.MethodPost)
	api.HandleFunc("/annotations/{id}", annotationHandler.UpdateAnnotation).Methods(http.MethodPut)
	api.HandleFunc("/annotations/{id}", annotationHandler.DeleteAnnotation).Methods(http.MethodDelete)
	api.HandleFunc("/annotations/{id}/replies", annotationHandler.AddReply).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return c.Handler(router)
}
