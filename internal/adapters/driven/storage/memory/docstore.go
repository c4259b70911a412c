package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Generated ids are zero-padded sequence numbers, so ascending id order
// matches insertion order as it does with ObjectIDs.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	keys      map[string]string // "title:identifier" -> id
	seq       int
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		keys:      make(map[string]string),
	}
}

func uniqueKey(titleNumber int, identifier string) string {
	return fmt.Sprintf("%d:%s", titleNumber, identifier)
}

func (s *DocumentStore) nextID() string {
	s.seq++
	return fmt.Sprintf("%024d", s.seq)
}

// DeleteByTitle removes every document for a title number.
func (s *DocumentStore) DeleteByTitle(_ context.Context, titleNumber int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, doc := range s.documents {
		if doc.TitleNumber == titleNumber {
			delete(s.documents, id)
			delete(s.keys, uniqueKey(doc.TitleNumber, doc.Identifier))
			deleted++
		}
	}
	return deleted, nil
}

// InsertBatch inserts documents with unordered continue-on-error
// semantics. Duplicate (titleNumber, identifier) pairs fail
// individually, matching the unique index.
func (s *DocumentStore) InsertBatch(_ context.Context, docs []domain.Document) (driven.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result driven.BatchResult
	for i := range docs {
		key := uniqueKey(docs[i].TitleNumber, docs[i].Identifier)
		if _, exists := s.keys[key]; exists {
			result.Failed++
			continue
		}
		if docs[i].ID == "" {
			docs[i].ID = s.nextID()
		}
		s.documents[docs[i].ID] = docs[i]
		s.keys[key] = docs[i].ID
		result.Inserted++
	}
	return result, nil
}

// GetDocument retrieves a document by id.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetTitleRoot returns the title-type document for a title number.
func (s *DocumentStore) GetTitleRoot(_ context.Context, titleNumber int) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if doc.TitleNumber == titleNumber && doc.Type == domain.DocTypeTitle {
			d := doc
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

// DistinctTitleNumbers lists the distinct title numbers present,
// ascending.
func (s *DocumentStore) DistinctTitleNumbers(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]bool)
	for _, doc := range s.documents {
		seen[doc.TitleNumber] = true
	}
	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

// CountByTitle counts documents for a title number. A zero title number
// counts the whole collection.
func (s *DocumentStore) CountByTitle(_ context.Context, titleNumber int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if titleNumber == 0 {
		return len(s.documents), nil
	}
	count := 0
	for _, doc := range s.documents {
		if doc.TitleNumber == titleNumber {
			count++
		}
	}
	return count, nil
}

// CountSections counts section-type documents.
func (s *DocumentStore) CountSections(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, doc := range s.documents {
		if doc.Type == domain.DocTypeSection {
			count++
		}
	}
	return count, nil
}

// StreamByTitle streams a title's documents in ascending id order.
func (s *DocumentStore) StreamByTitle(_ context.Context, titleNumber int) (driven.DocumentCursor, error) {
	return s.snapshot(func(d *domain.Document) bool {
		return d.TitleNumber == titleNumber
	}), nil
}

// StreamSections streams section documents in ascending id order,
// starting at fromID when non-empty (inclusive).
func (s *DocumentStore) StreamSections(_ context.Context, fromID string) (driven.DocumentCursor, error) {
	return s.snapshot(func(d *domain.Document) bool {
		if d.Type != domain.DocTypeSection {
			return false
		}
		return fromID == "" || d.ID >= fromID
	}), nil
}

// snapshot copies matching documents sorted by id into a cursor.
func (s *DocumentStore) snapshot(match func(*domain.Document) bool) *sliceCursor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, doc := range s.documents {
		d := doc
		if match(&d) {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return &sliceCursor{docs: docs, pos: -1}
}

// sliceCursor is a DocumentCursor over a materialized slice.
type sliceCursor struct {
	docs []domain.Document
	pos  int
}

func (c *sliceCursor) Next(_ context.Context) bool {
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Document() *domain.Document {
	return &c.docs[c.pos]
}

func (c *sliceCursor) Err() error { return nil }

func (c *sliceCursor) Close(_ context.Context) error { return nil }
