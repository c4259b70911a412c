package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

func seedTitle(t *testing.T, titles *memory.TitleStore, documents *memory.DocumentStore, number int, content string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, titles.UpsertTitle(ctx, &domain.Title{Number: number, Name: "Title"}))
	_, err := documents.InsertBatch(ctx, []domain.Document{{
		TitleNumber: number,
		Type:        domain.DocTypeTitle,
		Identifier:  "root",
		Content:     content,
	}})
	require.NoError(t, err)
}

func TestTextMetricsAppendsHistory(t *testing.T) {
	titles := memory.NewTitleStore()
	documents := memory.NewDocumentStore()
	metrics := memory.NewMetricStore()
	ctx := context.Background()

	seedTitle(t, titles, documents, 1, "Each person shall comply. The agency must report annually.")
	seedTitle(t, titles, documents, 2, "No permit is required for exempt activities.")

	worker := NewTextMetricsWorker(
		memory.NewThreadStore(), titles, documents,
		memory.NewBlobStore(), metrics, memory.NewSettingsStore(),
	)

	require.NoError(t, worker.Run(ctx, false))
	assert.Len(t, metrics.All(), 2)

	// A second full run appends new rows; history is never rewritten.
	require.NoError(t, worker.Run(ctx, true))
	assert.Len(t, metrics.All(), 4)

	first := metrics.All()[0]
	assert.Equal(t, 1, first.TitleNumber)
	assert.Positive(t, first.Metrics.WordCount)
	assert.Positive(t, first.Metrics.KeywordFrequency["shall"])

	title, err := titles.GetTitle(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, title.LastAnalyzed)
}

func TestTextMetricsFollowsSpilledContent(t *testing.T) {
	titles := memory.NewTitleStore()
	documents := memory.NewDocumentStore()
	blobs := memory.NewBlobStore()
	metrics := memory.NewMetricStore()
	ctx := context.Background()

	blobID, err := blobs.Upload(ctx, "title9-root-content", bytes.NewReader(
		[]byte("The spilled body still counts toward the word totals."),
	))
	require.NoError(t, err)

	require.NoError(t, titles.UpsertTitle(ctx, &domain.Title{Number: 9}))
	_, err = documents.InsertBatch(ctx, []domain.Document{{
		TitleNumber:   9,
		Type:          domain.DocTypeTitle,
		Identifier:    "root",
		Content:       domain.SpillSentinel,
		ContentGridFS: blobID,
	}})
	require.NoError(t, err)

	worker := NewTextMetricsWorker(
		memory.NewThreadStore(), titles, documents, blobs, metrics, memory.NewSettingsStore(),
	)
	require.NoError(t, worker.Run(ctx, false))

	require.Len(t, metrics.All(), 1)
	assert.Equal(t, 9, metrics.All()[0].Metrics.WordCount)
}

func TestAgeDistributionUpdatesSameDayMetric(t *testing.T) {
	titles := memory.NewTitleStore()
	histories := memory.NewVersionHistoryStore()
	metrics := memory.NewMetricStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	dates := []time.Time{
		now.AddDate(0, -3, 0),  // under a year
		now.AddDate(-3, 0, 0),  // 1-5 years
		now.AddDate(-25, 0, 0), // over twenty
	}

	require.NoError(t, titles.UpsertTitle(ctx, &domain.Title{Number: 1}))
	history := &domain.VersionHistory{TitleNumber: 1}
	for i := range dates {
		history.Versions = append(history.Versions, domain.Version{Date: &dates[i], Identifier: "1.1"})
	}
	require.NoError(t, histories.UpsertVersionHistory(ctx, history))

	// A text-metrics row from earlier today.
	require.NoError(t, metrics.AppendMetric(ctx, &domain.Metric{
		TitleNumber:  1,
		AnalysisDate: now.Add(-2 * time.Hour),
		Metrics:      domain.MetricValues{WordCount: 500},
	}))

	worker := NewAgeDistributionWorker(memory.NewThreadStore(), titles, histories, metrics)
	worker.now = func() time.Time { return now }

	require.NoError(t, worker.Run(ctx, false))

	// The same-day row was updated in place, not duplicated.
	all := metrics.All()
	require.Len(t, all, 1)
	assert.Equal(t, 500, all[0].Metrics.WordCount)
	dist := all[0].Metrics.RegulationAgeDist
	require.NotNil(t, dist)
	assert.Equal(t, 1, dist.Under1Year)
	assert.Equal(t, 1, dist.OneToFiveYears)
	assert.Equal(t, 1, dist.OverTwentyYears)
	assert.Equal(t, 3, dist.Total())
}

func TestAgeDistributionCreatesRowWhenNoneToday(t *testing.T) {
	titles := memory.NewTitleStore()
	histories := memory.NewVersionHistoryStore()
	metrics := memory.NewMetricStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	date := now.AddDate(-7, 0, 0)

	require.NoError(t, titles.UpsertTitle(ctx, &domain.Title{Number: 2}))
	require.NoError(t, histories.UpsertVersionHistory(ctx, &domain.VersionHistory{
		TitleNumber: 2,
		Versions:    []domain.Version{{Date: &date, Identifier: "2.1"}},
	}))

	// Yesterday's row must not be touched.
	require.NoError(t, metrics.AppendMetric(ctx, &domain.Metric{
		TitleNumber:  2,
		AnalysisDate: now.AddDate(0, 0, -1),
		Metrics:      domain.MetricValues{WordCount: 123},
	}))

	worker := NewAgeDistributionWorker(memory.NewThreadStore(), titles, histories, metrics)
	worker.now = func() time.Time { return now }

	require.NoError(t, worker.Run(ctx, false))

	all := metrics.All()
	require.Len(t, all, 2)
	assert.Nil(t, all[0].Metrics.RegulationAgeDist)
	fresh := all[1]
	require.NotNil(t, fresh.Metrics.RegulationAgeDist)
	assert.Equal(t, 1, fresh.Metrics.RegulationAgeDist.FiveToTenYears)
	assert.Zero(t, fresh.Metrics.WordCount)
}

func TestAgeDistributionSkipsTitleWithoutHistory(t *testing.T) {
	titles := memory.NewTitleStore()
	threads := memory.NewThreadStore()
	ctx := context.Background()

	require.NoError(t, titles.UpsertTitle(ctx, &domain.Title{Number: 3}))

	worker := NewAgeDistributionWorker(threads, titles, memory.NewVersionHistoryStore(), memory.NewMetricStore())
	require.NoError(t, worker.Run(ctx, false))

	thread, err := threads.GetThread(ctx, domain.ThreadAgeDistribution)
	require.NoError(t, err)
	assert.Equal(t, 1, thread.Statistics.ItemsProcessed)
	assert.Zero(t, thread.Statistics.ItemsFailed)
}

type fakeVersions struct {
	byTitle map[int][]domain.ContentVersion
	err     error
}

func (f *fakeVersions) ListVersions(_ context.Context, number int) ([]domain.ContentVersion, error) {
	return f.byTitle[number], f.err
}

func TestVersionHistoryFiltersUpstream(t *testing.T) {
	titles := memory.NewTitleStore()
	histories := memory.NewVersionHistoryStore()
	ctx := context.Background()

	require.NoError(t, titles.UpsertTitle(ctx, &domain.Title{Number: 1}))

	versions := &fakeVersions{byTitle: map[int][]domain.ContentVersion{
		1: {
			{Identifier: "1.1", AmendmentDate: "2020-03-15", Name: "Scope", Type: "section"},
			{Identifier: "1.2", AmendmentDate: "2018-07-01", Type: "section"},
			{Identifier: "1.3", AmendmentDate: "2019-01-01", Removed: true},
			{Identifier: "1.4", AmendmentDate: ""},
			{Identifier: "1.5", AmendmentDate: "not-a-date"},
		},
	}}

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	worker := NewVersionHistoryWorker(memory.NewThreadStore(), titles, versions, histories)
	worker.now = func() time.Time { return now }
	worker.sleep = func(_ context.Context, _ time.Duration) error { return nil }

	require.NoError(t, worker.Run(ctx, false))

	history, err := histories.GetVersionHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history.Versions, 2)
	assert.Equal(t, "1.1", history.Versions[0].Identifier)
	assert.Equal(t, 2020, history.Versions[0].Date.Year())
	assert.Equal(t, "1.2", history.Versions[1].Identifier)
	assert.Equal(t, now, history.LastUpdated)
}

func TestForEachTitleResumesFromCheckpoint(t *testing.T) {
	threads := memory.NewThreadStore()
	base := workerBase{threads: threads, ttype: domain.ThreadTextMetrics}
	ctx := context.Background()

	titles := []domain.Title{{Number: 1}, {Number: 2}, {Number: 3}}

	idx := 0
	thread, err := threads.GetThread(ctx, domain.ThreadTextMetrics)
	require.NoError(t, err)
	thread.Resume = &domain.ResumeData{LastTitleIndex: &idx}
	require.NoError(t, threads.SaveThread(ctx, thread))

	var seen []int
	err = base.forEachTitle(ctx, titles, false, func(_ context.Context, title *domain.Title) error {
		seen = append(seen, title.Number)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, seen)

	// Restart ignores the checkpoint.
	seen = nil
	err = base.forEachTitle(ctx, titles, true, func(_ context.Context, title *domain.Title) error {
		seen = append(seen, title.Number)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestForEachTitleStopsOnRequest(t *testing.T) {
	threads := memory.NewThreadStore()
	base := workerBase{threads: threads, ttype: domain.ThreadTextMetrics}
	ctx := context.Background()

	_, err := threads.GetThread(ctx, domain.ThreadTextMetrics)
	require.NoError(t, err)
	require.NoError(t, threads.SetThreadStatus(ctx, domain.ThreadTextMetrics, domain.ThreadPendingStop))

	called := false
	err = base.forEachTitle(ctx, []domain.Title{{Number: 1}}, false, func(_ context.Context, _ *domain.Title) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrStopRequested)
	assert.False(t, called)
}

func TestForEachTitleIsolatesFailures(t *testing.T) {
	threads := memory.NewThreadStore()
	base := workerBase{threads: threads, ttype: domain.ThreadTextMetrics}
	ctx := context.Background()

	titles := []domain.Title{{Number: 1}, {Number: 2}, {Number: 3}}
	err := base.forEachTitle(ctx, titles, false, func(_ context.Context, title *domain.Title) error {
		if title.Number == 2 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)

	thread, err := threads.GetThread(ctx, domain.ThreadTextMetrics)
	require.NoError(t, err)
	assert.Equal(t, 2, thread.Statistics.ItemsProcessed)
	assert.Equal(t, 1, thread.Statistics.ItemsFailed)
	assert.Equal(t, 3, thread.Progress.Current)
	assert.InDelta(t, 100.0, thread.Progress.Percentage, 0.01)
	assert.Equal(t, "title-3", thread.CurrentItem)
}

func TestCheckpointPreservesConcurrentStopRequest(t *testing.T) {
	threads := memory.NewThreadStore()
	ctx := context.Background()

	loaded, err := threads.GetThread(ctx, domain.ThreadTextMetrics)
	require.NoError(t, err)
	require.NoError(t, threads.SetThreadStatus(ctx, domain.ThreadTextMetrics, domain.ThreadRunning))
	loaded.Status = domain.ThreadRunning

	// The manager requests a stop after the worker loaded its row.
	require.NoError(t, threads.SetThreadStatus(ctx, domain.ThreadTextMetrics, domain.ThreadPendingStop))

	idx := 3
	loaded.Progress = domain.ThreadProgress{Current: 4, Total: 48}
	loaded.Resume = &domain.ResumeData{LastTitleIndex: &idx}
	require.NoError(t, threads.SaveThreadCheckpoint(ctx, loaded))

	thread, err := threads.GetThread(ctx, domain.ThreadTextMetrics)
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadPendingStop, thread.Status, "stop request must survive a checkpoint")
	assert.Equal(t, 4, thread.Progress.Current)
	require.NotNil(t, thread.Resume)
	assert.Equal(t, 3, *thread.Resume.LastTitleIndex)
}
