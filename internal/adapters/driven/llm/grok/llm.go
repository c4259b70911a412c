// Package grok provides an LLM service adapter for a chat-completions
// style HTTP endpoint with bearer auth.
package grok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.x.ai"
	DefaultModel   = "grok-3-mini"
	DefaultTimeout = 120 * time.Second

	// MaxRetries is the number of attempts per request.
	MaxRetries = 3

	// RetryDelay is the initial delay between attempts; it doubles
	// after each failure.
	RetryDelay = 2 * time.Second
)

// Config holds configuration for the LLM service.
type Config struct {
	// APIKey is the bearer token (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.x.ai).
	BaseURL string

	// Model is the model to request (default: grok-3-mini).
	Model string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration
}

// APIError is a non-2xx response from the LLM endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether the request is worth repeating.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// LLMService sends single-turn completions to the endpoint.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string

	// sleep is replaceable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLLMService creates the service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("grok: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		sleep:   sleepCtx,
	}, nil
}

// completionRequest is the chat-completions request body.
type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	TopP        float64             `json:"top_p,omitempty"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock is one block of a structured completion response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// completionResponse accepts the structured response shape.
type completionResponse struct {
	Content []contentBlock `json:"content"`
}

// Generate produces a text completion for a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	reqBody := completionRequest{
		Model:       s.model,
		Messages:    []completionMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		TopP:        opts.TopP,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	backoff := RetryDelay

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		if attempt > 1 {
			logger.Debug("Retrying LLM request (attempt %d/%d)", attempt, MaxRetries)
			if err := s.sleep(ctx, backoff); err != nil {
				return "", err
			}
			backoff *= 2
		}

		text, err := s.send(ctx, jsonBody)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("llm request: %w", lastErr)
}

func (s *LLMService) send(ctx context.Context, jsonBody []byte) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 500)}
	}

	return extractText(body)
}

// extractText accepts either a structured content-block response or a
// bare string body. A response holding only thinking blocks fails.
func extractText(body []byte) (string, error) {
	var structured completionResponse
	if err := json.Unmarshal(body, &structured); err == nil && len(structured.Content) > 0 {
		for _, block := range structured.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", fmt.Errorf("llm: response contained no text blocks")
	}

	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	return string(body), nil
}

// ModelName returns the model identifier used for requests.
func (s *LLMService) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sleepCtx waits for the duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
