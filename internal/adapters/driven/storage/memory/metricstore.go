package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure MetricStore implements the interface.
var _ driven.MetricStore = (*MetricStore)(nil)

// MetricStore is an in-memory implementation of driven.MetricStore.
type MetricStore struct {
	mu      sync.RWMutex
	metrics []domain.Metric
	seq     int
}

// NewMetricStore creates a new in-memory metric store.
func NewMetricStore() *MetricStore {
	return &MetricStore{}
}

// AppendMetric inserts a new metric row.
func (s *MetricStore) AppendMetric(_ context.Context, m *domain.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		s.seq++
		m.ID = fmt.Sprintf("metric-%06d", s.seq)
	}
	s.metrics = append(s.metrics, *m)
	return nil
}

// LatestMetricSince returns the most recent metric for a title with
// analysisDate at or after the cutoff.
func (s *MetricStore) LatestMetricSince(_ context.Context, titleNumber int, cutoff time.Time) (*domain.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Metric
	for i := range s.metrics {
		m := s.metrics[i]
		if m.TitleNumber != titleNumber || m.AnalysisDate.Before(cutoff) {
			continue
		}
		if latest == nil || m.AnalysisDate.After(latest.AnalysisDate) {
			latest = &m
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	found := *latest
	return &found, nil
}

// SetAgeDistribution updates the age histogram on an existing metric
// row.
func (s *MetricStore) SetAgeDistribution(_ context.Context, metricID string, dist *domain.AgeDistribution, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.metrics {
		if s.metrics[i].ID == metricID {
			d := *dist
			s.metrics[i].Metrics.RegulationAgeDist = &d
			s.metrics[i].AnalysisDate = at
			return nil
		}
	}
	return domain.ErrNotFound
}

// All returns every stored metric in insertion order. Test helper.
func (s *MetricStore) All() []domain.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}
