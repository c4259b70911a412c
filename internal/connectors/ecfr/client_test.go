package ecfr

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryListTitles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/versioner/v1/titles.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"titles":[
			{"number":1,"name":"General Provisions","reserved":false,"latest_issue_date":"2024-01-05"},
			{"number":35,"name":"Reserved","reserved":true}
		]}`))
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL)
	titles, err := client.ListTitles(context.Background())
	require.NoError(t, err)
	require.Len(t, titles, 2)
	assert.Equal(t, 1, titles[0].Number)
	assert.Equal(t, "General Provisions", titles[0].Name)
	assert.True(t, titles[1].Reserved)
}

func TestRegistryListTitlesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL)
	_, err := client.ListTitles(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestDownloadTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bulkdata/ECFR/title-5/ECFR-title5.xml", r.URL.Path)
		assert.Equal(t, "gzip,deflate", r.Header.Get("Accept-Encoding"))
		_, _ = w.Write([]byte("<DIV1/>"))
	}))
	defer server.Close()

	d := NewDownloader(server.URL)
	body, err := d.DownloadTitle(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "<DIV1/>", string(body))
}

func TestDownloadTitleGzipBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("<DIV1>compressed</DIV1>"))
		_ = gz.Close()
	}))
	defer server.Close()

	d := NewDownloader(server.URL)
	body, err := d.DownloadTitle(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "<DIV1>compressed</DIV1>", string(body))
}

func TestDownloadTitleRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<DIV1/>"))
	}))
	defer server.Close()

	d := NewDownloader(server.URL)
	d.sleep = func(context.Context, time.Duration) error { return nil }

	body, err := d.DownloadTitle(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "<DIV1/>", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownloadTitleExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := NewDownloader(server.URL)
	d.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := d.DownloadTitle(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, int32(DownloadRetries), calls.Load())
}

func TestListVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/versioner/v1/versions/title-12.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"content_versions":[
			{"amendment_date":"2024-03-01","identifier":"12.1","name":"Section 12.1","part":"12","type":"section"},
			{"amendment_date":"2020-01-01","identifier":"12.2","name":"Removed","part":"12","type":"section","removed":true}
		]}`))
	}))
	defer server.Close()

	client := NewVersionsClient(server.URL)
	versions, err := client.ListVersions(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "12.1", versions[0].Identifier)
	assert.True(t, versions[1].Removed)
}
