package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure both stores implement their interfaces.
var (
	_ driven.VersionHistoryStore  = (*VersionHistoryStore)(nil)
	_ driven.SectionAnalysisStore = (*SectionAnalysisStore)(nil)
)

// VersionHistoryStore is an in-memory implementation of
// driven.VersionHistoryStore.
type VersionHistoryStore struct {
	mu        sync.RWMutex
	histories map[int]domain.VersionHistory
}

// NewVersionHistoryStore creates a new in-memory version history store.
func NewVersionHistoryStore() *VersionHistoryStore {
	return &VersionHistoryStore{histories: make(map[int]domain.VersionHistory)}
}

// UpsertVersionHistory stores or replaces the timeline for a title.
func (s *VersionHistoryStore) UpsertVersionHistory(_ context.Context, vh *domain.VersionHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vh.ID == "" {
		vh.ID = fmt.Sprintf("vh-%d", vh.TitleNumber)
	}
	s.histories[vh.TitleNumber] = *vh
	return nil
}

// GetVersionHistory retrieves the timeline for a title.
func (s *VersionHistoryStore) GetVersionHistory(_ context.Context, titleNumber int) (*domain.VersionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vh, ok := s.histories[titleNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &vh, nil
}

// SectionAnalysisStore is an in-memory implementation of
// driven.SectionAnalysisStore.
type SectionAnalysisStore struct {
	mu       sync.RWMutex
	analyses map[string]domain.SectionAnalysis // keyed on document id
	seq      int
}

// NewSectionAnalysisStore creates a new in-memory analysis store.
func NewSectionAnalysisStore() *SectionAnalysisStore {
	return &SectionAnalysisStore{analyses: make(map[string]domain.SectionAnalysis)}
}

// UpsertSectionAnalysis stores or replaces the analysis keyed on
// document id.
func (s *SectionAnalysisStore) UpsertSectionAnalysis(_ context.Context, sa *domain.SectionAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.analyses[sa.DocumentID]; ok {
		sa.ID = existing.ID
	} else if sa.ID == "" {
		s.seq++
		sa.ID = fmt.Sprintf("sa-%06d", s.seq)
	}
	s.analyses[sa.DocumentID] = *sa
	return nil
}

// HasAnalysis reports whether an analysis exists for the document at
// the given analysis version.
func (s *SectionAnalysisStore) HasAnalysis(_ context.Context, documentID, version string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sa, ok := s.analyses[documentID]
	return ok && sa.AnalysisVersion == version, nil
}

// Get returns the analysis for a document id. Test helper.
func (s *SectionAnalysisStore) Get(documentID string) (domain.SectionAnalysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sa, ok := s.analyses[documentID]
	return sa, ok
}

// Count returns the number of stored analyses. Test helper.
func (s *SectionAnalysisStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses)
}
