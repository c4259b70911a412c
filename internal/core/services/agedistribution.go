package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure AgeDistributionWorker implements the interface.
var _ Worker = (*AgeDistributionWorker)(nil)

// AgeDistributionWorker buckets each title's amendment dates into an
// age histogram. Unlike text metrics it updates the same-day Metric in
// place rather than appending; word-count history stays append-only
// while the histogram reflects the latest run of the day.
type AgeDistributionWorker struct {
	base      workerBase
	titles    driven.TitleStore
	histories driven.VersionHistoryStore
	metrics   driven.MetricStore

	now func() time.Time
}

// NewAgeDistributionWorker creates the worker.
func NewAgeDistributionWorker(
	threads driven.ThreadStore,
	titles driven.TitleStore,
	histories driven.VersionHistoryStore,
	metrics driven.MetricStore,
) *AgeDistributionWorker {
	return &AgeDistributionWorker{
		base:      workerBase{threads: threads, ttype: domain.ThreadAgeDistribution},
		titles:    titles,
		histories: histories,
		metrics:   metrics,
		now:       time.Now,
	}
}

// ThreadType identifies the worker.
func (w *AgeDistributionWorker) ThreadType() domain.ThreadType {
	return domain.ThreadAgeDistribution
}

// Run processes every stored title in ascending number order.
func (w *AgeDistributionWorker) Run(ctx context.Context, restart bool) error {
	titles, err := w.titles.ListTitles(ctx)
	if err != nil {
		return fmt.Errorf("list titles: %w", err)
	}

	return w.base.forEachTitle(ctx, titles, restart, w.processTitle)
}

func (w *AgeDistributionWorker) processTitle(ctx context.Context, title *domain.Title) error {
	history, err := w.histories.GetVersionHistory(ctx, title.Number)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("No version history for title %d yet", title.Number)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load version history: %w", err)
	}

	now := w.now()
	var dist domain.AgeDistribution
	for _, v := range history.Versions {
		if v.Date == nil {
			continue
		}
		dist.Add(now.Sub(*v.Date))
	}

	return w.upsertTodayMetric(ctx, title.Number, &dist, now)
}

// upsertTodayMetric sets the histogram on today's Metric row, creating
// one carrying only the histogram when no row exists for today.
func (w *AgeDistributionWorker) upsertTodayMetric(ctx context.Context, number int, dist *domain.AgeDistribution, now time.Time) error {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	existing, err := w.metrics.LatestMetricSince(ctx, number, startOfDay)
	if err == nil {
		return w.metrics.SetAgeDistribution(ctx, existing.ID, dist, now)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("find today's metric: %w", err)
	}

	metric := &domain.Metric{
		TitleNumber:  number,
		AnalysisDate: now,
		Metrics:      domain.MetricValues{RegulationAgeDist: dist},
	}
	return w.metrics.AppendMetric(ctx, metric)
}
