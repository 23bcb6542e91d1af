package domain

import "context"

// LLMClient is the review model behind the auto-annotation pipeline.
// Implementations own their timeout and retry policy; a returned error is a
// terminal fault for the run that made the call.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
