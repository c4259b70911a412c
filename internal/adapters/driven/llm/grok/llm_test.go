package grok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*LLMService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewLLMService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc, server
}

func TestNewLLMServiceRequiresKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestGenerateContentBlocks(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"content":[
			{"type":"thinking","text":"hmm"},
			{"type":"text","text":"75"}
		]}`))
	})

	text, err := svc.Generate(context.Background(), "score this", driven.GenerateOptions{MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "75", text)
}

func TestGenerateBareString(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"a short summary"`))
	})

	text, err := svc.Generate(context.Background(), "summarise", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a short summary", text)
}

func TestGenerateThinkingOnlyFails(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"thinking","text":"hmm"}]}`))
	})

	_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text blocks")
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`"done"`))
	})

	text, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(MaxRetries), calls.Load())
}
