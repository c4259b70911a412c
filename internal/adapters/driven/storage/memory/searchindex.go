package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure SearchIndex implements the interface.
var _ driven.SearchIndex = (*SearchIndex)(nil)

// SearchIndex is an in-memory implementation of driven.SearchIndex.
type SearchIndex struct {
	mu      sync.RWMutex
	exists  bool
	entries map[string]domain.SearchDocument

	// FailBulk makes every BulkIndex report all documents failed.
	// Test hook for rebuild failure counting.
	FailBulk bool
}

// NewSearchIndex creates a new in-memory search index.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{entries: make(map[string]domain.SearchDocument)}
}

// EnsureIndex creates the index if absent.
func (s *SearchIndex) EnsureIndex(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = true
	return nil
}

// DeleteIndex removes the index and all entries.
func (s *SearchIndex) DeleteIndex(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = false
	s.entries = make(map[string]domain.SearchDocument)
	return nil
}

// IndexExists reports whether the index exists.
func (s *SearchIndex) IndexExists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists, nil
}

// BulkIndex upserts a batch of search documents.
func (s *SearchIndex) BulkIndex(_ context.Context, docs []domain.SearchDocument) (driven.BulkIndexResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailBulk {
		return driven.BulkIndexResult{Failed: len(docs)}, nil
	}
	for _, doc := range docs {
		s.entries[doc.ID] = doc
	}
	return driven.BulkIndexResult{Indexed: len(docs)}, nil
}

// DeleteByTitle removes all indexed entries for a title number.
func (s *SearchIndex) DeleteByTitle(_ context.Context, titleNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, doc := range s.entries {
		if doc.TitleNumber == titleNumber {
			delete(s.entries, id)
		}
	}
	return nil
}

// Len returns the number of indexed entries. Test helper.
func (s *SearchIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry returns the indexed document for an id. Test helper.
func (s *SearchIndex) Entry(id string) (domain.SearchDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.entries[id]
	return doc, ok
}
