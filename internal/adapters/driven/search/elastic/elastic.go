// Package elastic implements the search index on Elasticsearch using
// the official Go client and its bulk indexer.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure SearchIndex implements the interface.
var _ driven.SearchIndex = (*SearchIndex)(nil)

// DefaultIndexName is the index holding the regulation documents.
const DefaultIndexName = "ecfr_documents"

// mapping is the index mapping. Hierarchy coordinates are keywords;
// heading and content are analyzed text.
const mapping = `{
  "mappings": {
    "properties": {
      "titleNumber":   {"type": "integer"},
      "type":          {"type": "keyword"},
      "identifier":    {"type": "keyword"},
      "subtitle":      {"type": "keyword"},
      "chapter":       {"type": "keyword"},
      "subchapter":    {"type": "keyword"},
      "part":          {"type": "keyword"},
      "subpart":       {"type": "keyword"},
      "subjectGroup":  {"type": "keyword"},
      "section":       {"type": "keyword"},
      "heading":       {"type": "text"},
      "content":       {"type": "text"},
      "wordCount":     {"type": "integer"},
      "citationCount": {"type": "integer"},
      "effectiveDate": {"type": "date"},
      "amendmentDate": {"type": "date"},
      "lastModified":  {"type": "date"}
    }
  }
}`

// SearchIndex is an Elasticsearch implementation of driven.SearchIndex.
type SearchIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewSearchIndex creates the adapter against the given host address.
func NewSearchIndex(host string) (*SearchIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{host},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &SearchIndex{client: client, index: DefaultIndexName}, nil
}

// EnsureIndex creates the index with its mapping if absent.
func (s *SearchIndex) EnsureIndex(ctx context.Context) error {
	exists, err := s.IndexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	res, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index: %s", responseBody(res.Body))
	}
	return nil
}

// DeleteIndex removes the index if it exists.
func (s *SearchIndex) DeleteIndex(ctx context.Context) error {
	res, err := s.client.Indices.Delete(
		[]string{s.index},
		s.client.Indices.Delete.WithContext(ctx),
		s.client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("delete index: %s", responseBody(res.Body))
	}
	return nil
}

// IndexExists reports whether the index exists.
func (s *SearchIndex) IndexExists(ctx context.Context) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{s.index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, fmt.Errorf("check index: %s", res.Status())
	}
}

// BulkIndex upserts a batch of search documents through the bulk
// indexer. Per-document failures are logged and counted, not fatal.
func (s *SearchIndex) BulkIndex(ctx context.Context, docs []domain.SearchDocument) (driven.BulkIndexResult, error) {
	if len(docs) == 0 {
		return driven.BulkIndexResult{}, nil
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client: s.client,
		Index:  s.index,
	})
	if err != nil {
		return driven.BulkIndexResult{}, fmt.Errorf("bulk indexer: %w", err)
	}

	var indexed, failed atomic.Int64

	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			logger.Warn("Marshal search document %s: %v", doc.ID, err)
			failed.Add(1)
			continue
		}

		err = indexer.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.ID,
			Body:       bytes.NewReader(body),
			OnSuccess: func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem) {
				indexed.Add(1)
			},
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, resp esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					logger.Warn("Index document %s: %v", item.DocumentID, err)
				} else {
					logger.Warn("Index document %s: %s", item.DocumentID, resp.Error.Reason)
				}
				failed.Add(1)
			},
		})
		if err != nil {
			failed.Add(1)
		}
	}

	if err := indexer.Close(ctx); err != nil {
		return driven.BulkIndexResult{}, fmt.Errorf("flush bulk indexer: %w", err)
	}

	return driven.BulkIndexResult{
		Indexed: int(indexed.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

// DeleteByTitle removes all indexed entries for a title number.
func (s *SearchIndex) DeleteByTitle(ctx context.Context, titleNumber int) error {
	query := fmt.Sprintf(`{"query":{"term":{"titleNumber":%d}}}`, titleNumber)

	res, err := s.client.DeleteByQuery(
		[]string{s.index},
		strings.NewReader(query),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete by title %d: %w", titleNumber, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("delete by title %d: %s", titleNumber, responseBody(res.Body))
	}
	return nil
}

func responseBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return "unreadable response"
	}
	return string(data)
}
