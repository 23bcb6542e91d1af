package config

import (
	"context"

	"pdf-review-server/internal/domain"
	"pdf-review-server/internal/repository"
	"pdf-review-server/internal/service"
	"pdf-review-server/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient domain.SupabaseClient

	AnnotationRepository domain.AnnotationRepository

	AuthService       domain.AuthService
	StorageService    domain.StorageService
	PDFService        domain.PDFService
	AnnotationService domain.AnnotationService
	LLMClient         domain.LLMClient
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	cfg := NewConfig()
	appLogger := logger.NewLogger(cfg.GetLogLevel())

	supabaseClient := repository.NewSupabaseClient(cfg, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		appLogger.Warn("Supabase client not initialized; persistence and auth will fail", "error", err)
	}

	annotationRepo := repository.NewAnnotationRepository(supabaseClient, appLogger)

	matcher := service.NewFragmentMatcher(service.MatcherConfig{
		WordMatchThreshold:     cfg.GetWordMatchThreshold(),
		SequenceMatchThreshold: cfg.GetSequenceMatchThreshold(),
	})
	extractor := service.NewCorpusExtractor(appLogger)
	locator := service.NewLocator(matcher, appLogger)

	// The review model is optional: without GCP credentials the server still
	// serves extraction, search and manual annotations.
	var llmClient domain.LLMClient
	if cfg.GetGCPProjectID() != "" {
		client, err := service.NewGeminiClient(
			context.Background(),
			cfg.GetGCPProjectID(),
			cfg.GetGCPLocation(),
			cfg.GetLLMModel(),
			cfg.GetLLMTimeout(),
			cfg.GetLLMMaxRetries(),
			appLogger,
		)
		if err != nil {
			appLogger.Warn("Failed to create review model client; auto-annotation disabled", "error", err)
		} else {
			llmClient = client
		}
	} else {
		appLogger.Warn("GCP_PROJECT_ID not set; auto-annotation disabled")
	}

	return &Container{
		Config:               cfg,
		Logger:               appLogger,
		SupabaseClient:       supabaseClient,
		AnnotationRepository: annotationRepo,
		AuthService:          service.NewAuthService(supabaseClient, appLogger),
		StorageService:       service.NewStorageService(cfg.GetSupabaseURL(), cfg.GetSupabaseKey()),
		PDFService:           service.NewPDFService(extractor, locator, appLogger),
		AnnotationService:    service.NewAnnotationService(annotationRepo, llmClient, extractor, locator, appLogger),
		LLMClient:            llmClient,
	}
}
