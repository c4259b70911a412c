package ecfr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure RegistryClient implements the interface.
var _ driven.RegistryClient = (*RegistryClient)(nil)

// RegistryClient fetches the title registry from the eCFR versioner API.
type RegistryClient struct {
	client  *http.Client
	baseURL string
}

// NewRegistryClient creates a registry client. An empty baseURL uses
// the public eCFR endpoint.
func NewRegistryClient(baseURL string) *RegistryClient {
	if baseURL == "" {
		baseURL = DefaultRegistryBaseURL
	}
	return &RegistryClient{
		client:  &http.Client{Timeout: RegistryTimeout},
		baseURL: baseURL,
	}
}

// titlesResponse is the registry JSON shape.
type titlesResponse struct {
	Titles []domain.RegistryTitle `json:"titles"`
}

// ListTitles returns every registered title, reserved ones included.
func (c *RegistryClient) ListTitles(ctx context.Context) ([]domain.RegistryTitle, error) {
	url := c.baseURL + "/api/versioner/v1/titles.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch titles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}

	var parsed titlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode titles: %w", err)
	}

	return parsed.Titles, nil
}
