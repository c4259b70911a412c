package driven

import (
	"context"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// BulkIndexResult reports the outcome of a bulk index request.
type BulkIndexResult struct {
	Indexed int
	Failed  int
}

// SearchIndex maintains the full-text index over the document tree.
// The index id of each entry is the document store id as a string.
type SearchIndex interface {
	// EnsureIndex creates the index with its mapping if absent.
	EnsureIndex(ctx context.Context) error

	// DeleteIndex removes the index if it exists.
	DeleteIndex(ctx context.Context) error

	// IndexExists reports whether the index exists.
	IndexExists(ctx context.Context) (bool, error)

	// BulkIndex upserts a batch of search documents.
	BulkIndex(ctx context.Context, docs []domain.SearchDocument) (BulkIndexResult, error)

	// DeleteByTitle removes all indexed entries for a title number.
	DeleteByTitle(ctx context.Context, titleNumber int) error
}
