package ecfr

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure Downloader implements the interface.
var _ driven.TitleDownloader = (*Downloader)(nil)

// Downloader fetches bulk title XML from govinfo. Transient failures
// retry with exponential backoff; there is no content-size cap.
type Downloader struct {
	client  *http.Client
	baseURL string

	// sleep is replaceable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDownloader creates a bulk XML downloader. An empty baseURL uses
// the public govinfo endpoint.
func NewDownloader(baseURL string) *Downloader {
	if baseURL == "" {
		baseURL = DefaultBulkDataBaseURL
	}
	return &Downloader{
		client:  &http.Client{Timeout: DownloadTimeout},
		baseURL: baseURL,
		sleep:   sleepCtx,
	}
}

// DownloadTitle returns the raw XML bytes for a title number.
func (d *Downloader) DownloadTitle(ctx context.Context, number int) ([]byte, error) {
	url := fmt.Sprintf("%s/bulkdata/ECFR/title-%d/ECFR-title%d.xml", d.baseURL, number, number)

	var lastErr error
	backoff := DownloadBackoff

	for attempt := 1; attempt <= DownloadRetries; attempt++ {
		if attempt > 1 {
			logger.Info("Retrying title %d download (attempt %d/%d)", number, attempt, DownloadRetries)
			if err := d.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		body, err := d.fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		logger.Warn("Title %d download attempt %d failed: %v", number, attempt, err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("download title %d: %w", number, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip,deflate")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}

	return readBody(resp)
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
