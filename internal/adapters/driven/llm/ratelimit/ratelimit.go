// Package ratelimit wraps an LLM service in a shared token bucket so
// every caller, present and future, goes through the same requests-per-
// minute budget.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure Limited implements the interface.
var _ driven.LLMService = (*Limited)(nil)

// Limited decorates an LLM service with token-bucket rate limiting and
// a concurrency cap equal to the per-minute budget.
type Limited struct {
	inner  driven.LLMService
	bucket *rate.Limiter
	slots  chan struct{}
	perMin int
}

// Wrap builds a rate-limited view of the service enforcing
// requestsPerMinute. A non-positive budget means one request per minute.
func Wrap(inner driven.LLMService, requestsPerMinute int) *Limited {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &Limited{
		inner:  inner,
		bucket: rate.NewLimiter(rate.Every(interval), 1),
		slots:  make(chan struct{}, requestsPerMinute),
		perMin: requestsPerMinute,
	}
}

// RequestsPerMinute returns the configured budget.
func (l *Limited) RequestsPerMinute() int {
	return l.perMin
}

// Generate waits for a token, then delegates.
func (l *Limited) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.slots }()

	if err := l.bucket.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Generate(ctx, prompt, opts)
}

// ModelName returns the wrapped service's model identifier.
func (l *Limited) ModelName() string {
	return l.inner.ModelName()
}

// Close releases the wrapped service.
func (l *Limited) Close() error {
	return l.inner.Close()
}
