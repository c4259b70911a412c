package driven

import "context"

// GenerateOptions configures a single LLM completion.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// TopP is the nucleus sampling parameter.
	TopP float64
}

// LLMService is a single request/response text-generation endpoint.
//
// Every implementation handed to the workers must already be wrapped in
// the rate limiter so no caller can bypass it.
type LLMService interface {
	// Generate produces a text completion for a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the model identifier used for requests.
	ModelName() string

	// Close releases resources.
	Close() error
}
