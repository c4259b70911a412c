package ecfr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure VersionsClient implements the interface.
var _ driven.VersionsClient = (*VersionsClient)(nil)

// VersionsClient fetches per-title amendment timelines from the eCFR
// versioner API.
type VersionsClient struct {
	client  *http.Client
	baseURL string
}

// NewVersionsClient creates a versioner client. An empty baseURL uses
// the public eCFR endpoint.
func NewVersionsClient(baseURL string) *VersionsClient {
	if baseURL == "" {
		baseURL = DefaultRegistryBaseURL
	}
	return &VersionsClient{
		client:  &http.Client{Timeout: RegistryTimeout},
		baseURL: baseURL,
	}
}

// versionsResponse is the versioner JSON shape.
type versionsResponse struct {
	ContentVersions []domain.ContentVersion `json:"content_versions"`
}

// ListVersions returns the content versions for a title in upstream
// order.
func (c *VersionsClient) ListVersions(ctx context.Context, number int) ([]domain.ContentVersion, error) {
	url := fmt.Sprintf("%s/api/versioner/v1/versions/title-%d.json", c.baseURL, number)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch versions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}

	var parsed versionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}

	return parsed.ContentVersions, nil
}
