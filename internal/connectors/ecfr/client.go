// Package ecfr provides clients for the upstream eCFR HTTP APIs: the
// title registry, the bulk XML download service, and the versioner.
package ecfr

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default endpoints and timeouts.
const (
	DefaultRegistryBaseURL = "https://www.ecfr.gov"
	DefaultBulkDataBaseURL = "https://www.govinfo.gov"

	// RegistryTimeout bounds registry and versioner calls.
	RegistryTimeout = 30 * time.Second

	// DownloadTimeout bounds one bulk XML download attempt. Title files
	// run to hundreds of megabytes.
	DownloadTimeout = 10 * time.Minute

	// DownloadRetries is the number of attempts per title download.
	DownloadRetries = 3

	// DownloadBackoff is the initial delay between attempts; it doubles
	// after each failure.
	DownloadBackoff = 5 * time.Second
)

// APIError is a non-2xx response from an upstream endpoint.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ecfr: %s returned status %d", e.URL, e.StatusCode)
}

// readBody decompresses and reads a response body according to its
// Content-Encoding. The clients request gzip,deflate explicitly, so the
// transport does not decompress for us.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
