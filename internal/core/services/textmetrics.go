package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/textstats"
)

// Ensure TextMetricsWorker implements the interface.
var _ Worker = (*TextMetricsWorker)(nil)

// TextMetricsWorker computes word-count, readability and keyword
// metrics over each title's full text. Every run appends a fresh
// Metric row; history is never rewritten.
type TextMetricsWorker struct {
	base      workerBase
	titles    driven.TitleStore
	documents driven.DocumentStore
	blobs     driven.BlobStore
	metrics   driven.MetricStore
	settings  driven.SettingsStore

	now func() time.Time
}

// NewTextMetricsWorker creates the worker.
func NewTextMetricsWorker(
	threads driven.ThreadStore,
	titles driven.TitleStore,
	documents driven.DocumentStore,
	blobs driven.BlobStore,
	metrics driven.MetricStore,
	settings driven.SettingsStore,
) *TextMetricsWorker {
	return &TextMetricsWorker{
		base:      workerBase{threads: threads, ttype: domain.ThreadTextMetrics},
		titles:    titles,
		documents: documents,
		blobs:     blobs,
		metrics:   metrics,
		settings:  settings,
		now:       time.Now,
	}
}

// ThreadType identifies the worker.
func (w *TextMetricsWorker) ThreadType() domain.ThreadType {
	return domain.ThreadTextMetrics
}

// Run processes every stored title in ascending number order.
func (w *TextMetricsWorker) Run(ctx context.Context, restart bool) error {
	titles, err := w.titles.ListTitles(ctx)
	if err != nil {
		return fmt.Errorf("list titles: %w", err)
	}

	keywords, err := w.settings.RegulatoryKeywords(ctx)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}

	return w.base.forEachTitle(ctx, titles, restart, func(ctx context.Context, title *domain.Title) error {
		return w.processTitle(ctx, title, keywords)
	})
}

func (w *TextMetricsWorker) processTitle(ctx context.Context, title *domain.Title, keywords []string) error {
	content, err := w.titleText(ctx, title.Number)
	if err != nil {
		return err
	}

	cleaned := textstats.Clean(content)

	metric := &domain.Metric{
		TitleNumber:  title.Number,
		AnalysisDate: w.now(),
		Metrics: domain.MetricValues{
			WordCount:             textstats.WordCount(cleaned),
			ComplexityScore:       textstats.ComplexityScore(cleaned),
			ReadabilityScore:      textstats.FleschScore(cleaned),
			AverageSentenceLength: textstats.AverageSentenceLength(cleaned),
			KeywordFrequency:      textstats.KeywordFrequency(cleaned, keywords),
		},
	}

	if err := w.metrics.AppendMetric(ctx, metric); err != nil {
		return fmt.Errorf("append metric: %w", err)
	}
	if err := w.titles.SetLastAnalyzed(ctx, title.Number, w.now()); err != nil {
		return fmt.Errorf("stamp title: %w", err)
	}
	return nil
}

// titleText loads the title root document's content, following the
// blob reference when the inline value was spilled.
func (w *TextMetricsWorker) titleText(ctx context.Context, number int) (string, error) {
	root, err := w.documents.GetTitleRoot(ctx, number)
	if err != nil {
		return "", fmt.Errorf("load title root: %w", err)
	}

	if root.Content == domain.SpillSentinel && root.ContentGridFS != "" {
		data, err := w.blobs.Download(ctx, root.ContentGridFS)
		if err != nil {
			return "", fmt.Errorf("download spilled content: %w", err)
		}
		return string(data), nil
	}
	return root.Content, nil
}
