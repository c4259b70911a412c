package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore is an in-memory implementation of driven.BlobStore.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	names map[string]string
	seq   int
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		blobs: make(map[string][]byte),
		names: make(map[string]string),
	}
}

// Upload streams bytes into a new blob and returns its id.
func (s *BlobStore) Upload(_ context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("blob-%06d", s.seq)
	s.blobs[id] = data
	s.names[id] = filename
	return id, nil
}

// Download returns the bytes of a blob by id.
func (s *BlobStore) Download(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes a blob by id.
func (s *BlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.blobs, id)
	delete(s.names, id)
	return nil
}

// Len returns the number of stored blobs. Test helper.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
