package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure TitleStore implements the interface.
var _ driven.TitleStore = (*TitleStore)(nil)

// TitleStore is an in-memory implementation of driven.TitleStore.
type TitleStore struct {
	mu     sync.RWMutex
	titles map[int]domain.Title
}

// NewTitleStore creates a new in-memory title store.
func NewTitleStore() *TitleStore {
	return &TitleStore{titles: make(map[int]domain.Title)}
}

// UpsertTitle stores or updates a title keyed on its number.
func (s *TitleStore) UpsertTitle(_ context.Context, title *domain.Title) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[title.Number] = *title
	return nil
}

// GetTitle retrieves a title by number.
func (s *TitleStore) GetTitle(_ context.Context, number int) (*domain.Title, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	title, ok := s.titles[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &title, nil
}

// ListTitles returns all stored titles in ascending number order.
func (s *TitleStore) ListTitles(_ context.Context) ([]domain.Title, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titles := make([]domain.Title, 0, len(s.titles))
	for _, t := range s.titles {
		titles = append(titles, t)
	}
	sort.Slice(titles, func(i, j int) bool { return titles[i].Number < titles[j].Number })
	return titles, nil
}

// SetLastAnalyzed stamps the analytics timestamp for a title.
func (s *TitleStore) SetLastAnalyzed(_ context.Context, number int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	title, ok := s.titles[number]
	if !ok {
		return domain.ErrNotFound
	}
	title.LastAnalyzed = &at
	s.titles[number] = title
	return nil
}
