package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pdf-review-server/internal/domain"
	apperrors "pdf-review-server/pkg/errors"

	"cloud.google.com/go/vertexai/genai"
)

// GeminiClient implements domain.LLMClient on Vertex AI. Every attempt gets
// its own timeout; failures are retried with linear backoff and classified
// into user-facing fault classes before surfacing.
type GeminiClient struct {
	client     *genai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	logger     domain.Logger
}

// NewGeminiClient creates a Vertex AI backed review-model client.
func NewGeminiClient(ctx context.Context, projectID, location, model string, timeout time.Duration, maxRetries int, logger domain.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GeminiClient{
		client:     client,
		model:      model,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

const retryBackoffStep = 2 * time.Second

// Complete sends the prompt and returns the model's text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		text, err := c.completeOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		c.logger.Warn("Review model call failed", "attempt", attempt, "max", c.maxRetries, "error", err)

		if attempt < c.maxRetries {
			backoff := time.Duration(attempt) * retryBackoffStep
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", classifyLLMError(ctx.Err())
			}
		}
	}
	return "", classifyLLMError(lastErr)
}

func (c *GeminiClient) completeOnce(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.4)

	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

// classifyLLMError maps transport/model errors to the small set of
// user-facing fault classes.
func classifyLLMError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission") ||
		strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return apperrors.NewLLMAuthError(err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate") || strings.Contains(msg, "429"):
		return apperrors.NewLLMRateLimitError(err)
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "deadline") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "500") || strings.Contains(msg, "503"):
		return apperrors.NewLLMUnavailableError(err)
	default:
		return apperrors.NewNetworkError("Review model call failed", err)
	}
}
