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
	_ driven.RefreshProgressStore = (*RefreshProgressStore)(nil)
	_ driven.RebuildProgressStore = (*RebuildProgressStore)(nil)
)

// RefreshProgressStore is an in-memory implementation of
// driven.RefreshProgressStore.
type RefreshProgressStore struct {
	mu   sync.RWMutex
	rows map[string]domain.RefreshProgress
	seq  int
}

// NewRefreshProgressStore creates a new in-memory progress store.
func NewRefreshProgressStore() *RefreshProgressStore {
	return &RefreshProgressStore{rows: make(map[string]domain.RefreshProgress)}
}

// SaveRefreshProgress stores or updates a progress row.
func (s *RefreshProgressStore) SaveRefreshProgress(_ context.Context, p *domain.RefreshProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		s.seq++
		p.ID = fmt.Sprintf("refresh-%06d", s.seq)
	}
	s.rows[p.ID] = *p
	return nil
}

// GetRefreshProgress retrieves a progress row by id.
func (s *RefreshProgressStore) GetRefreshProgress(_ context.Context, id string) (*domain.RefreshProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// FindResumableRefresh returns the newest in_progress or pending row of
// the given type.
func (s *RefreshProgressStore) FindResumableRefresh(_ context.Context, t domain.RefreshType) (*domain.RefreshProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *domain.RefreshProgress
	for id := range s.rows {
		p := s.rows[id]
		if p.Type != t {
			continue
		}
		if p.Status != domain.JobInProgress && p.Status != domain.JobPending {
			continue
		}
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = &p
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	found := *newest
	return &found, nil
}

// OldestPendingManual returns the oldest pending manually-triggered row
// by creation time.
func (s *RefreshProgressStore) OldestPendingManual(_ context.Context) (*domain.RefreshProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *domain.RefreshProgress
	for id := range s.rows {
		p := s.rows[id]
		if p.Status != domain.JobPending {
			continue
		}
		if p.TriggeredBy != domain.TriggerManual && p.TriggeredBy != domain.TriggerManualSingle {
			continue
		}
		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = &p
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	found := *oldest
	return &found, nil
}

// AnyRefreshInProgress reports whether any refresh is in_progress.
func (s *RefreshProgressStore) AnyRefreshInProgress(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.rows {
		if p.Status == domain.JobInProgress {
			return true, nil
		}
	}
	return false, nil
}

// LatestRefresh returns the most recently created row of any type.
func (s *RefreshProgressStore) LatestRefresh(_ context.Context) (*domain.RefreshProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *domain.RefreshProgress
	for id := range s.rows {
		p := s.rows[id]
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = &p
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	found := *newest
	return &found, nil
}

// RebuildProgressStore is an in-memory implementation of
// driven.RebuildProgressStore.
type RebuildProgressStore struct {
	mu   sync.RWMutex
	rows map[string]domain.IndexRebuildProgress
	seq  int
}

// NewRebuildProgressStore creates a new in-memory rebuild store.
func NewRebuildProgressStore() *RebuildProgressStore {
	return &RebuildProgressStore{rows: make(map[string]domain.IndexRebuildProgress)}
}

// SaveRebuildProgress stores or updates a rebuild row.
func (s *RebuildProgressStore) SaveRebuildProgress(_ context.Context, p *domain.IndexRebuildProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		s.seq++
		p.ID = fmt.Sprintf("rebuild-%06d", s.seq)
	}
	s.rows[p.ID] = *p
	return nil
}

// GetRebuildProgress retrieves a rebuild row by id.
func (s *RebuildProgressStore) GetRebuildProgress(_ context.Context, id string) (*domain.IndexRebuildProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// LatestRebuild returns the most recently created rebuild row.
func (s *RebuildProgressStore) LatestRebuild(_ context.Context) (*domain.IndexRebuildProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *domain.IndexRebuildProgress
	for id := range s.rows {
		p := s.rows[id]
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = &p
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	found := *newest
	return &found, nil
}
