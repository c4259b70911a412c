package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure ThreadStore implements the interface.
var _ driven.ThreadStore = (*ThreadStore)(nil)

// ThreadStore is an in-memory implementation of driven.ThreadStore.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[domain.ThreadType]domain.AnalysisThread
	seq     int
}

// NewThreadStore creates a new in-memory thread store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{threads: make(map[domain.ThreadType]domain.AnalysisThread)}
}

// GetThread retrieves the row for a worker kind, creating a stopped row
// if absent.
func (s *ThreadStore) GetThread(_ context.Context, t domain.ThreadType) (*domain.AnalysisThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[t]
	if !ok {
		s.seq++
		thread = domain.AnalysisThread{
			ID:         fmt.Sprintf("thread-%02d", s.seq),
			ThreadType: t,
			Status:     domain.ThreadStopped,
		}
		s.threads[t] = thread
	}
	return &thread, nil
}

// SaveThread stores the full row.
func (s *ThreadStore) SaveThread(_ context.Context, thread *domain.AnalysisThread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if thread.ID == "" {
		s.seq++
		thread.ID = fmt.Sprintf("thread-%02d", s.seq)
	}
	s.threads[thread.ThreadType] = *thread
	return nil
}

// SaveThreadCheckpoint updates only the fields a worker owns, keeping
// the stored status so a concurrent stop request survives.
func (s *ThreadStore) SaveThreadCheckpoint(_ context.Context, thread *domain.AnalysisThread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.threads[thread.ThreadType]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Progress = thread.Progress
	stored.CurrentItem = thread.CurrentItem
	stored.Statistics = thread.Statistics
	stored.Resume = thread.Resume
	s.threads[thread.ThreadType] = stored
	return nil
}

// ListThreads returns all worker rows sorted by thread type.
func (s *ThreadStore) ListThreads(_ context.Context) ([]domain.AnalysisThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]domain.AnalysisThread, 0, len(s.threads))
	for _, t := range s.threads {
		threads = append(threads, t)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ThreadType < threads[j].ThreadType })
	return threads, nil
}

// SetThreadStatus updates only the status field.
func (s *ThreadStore) SetThreadStatus(_ context.Context, t domain.ThreadType, status domain.ThreadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[t]
	if !ok {
		return domain.ErrNotFound
	}
	thread.Status = status
	s.threads[t] = thread
	return nil
}
