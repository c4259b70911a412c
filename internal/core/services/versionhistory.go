package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure VersionHistoryWorker implements the interface.
var _ Worker = (*VersionHistoryWorker)(nil)

// versionerSleep is the politeness pause between upstream calls.
const versionerSleep = 1 * time.Second

// VersionHistoryWorker fetches each title's amendment timeline from
// the upstream versioner and stores it for the age worker to consume.
type VersionHistoryWorker struct {
	base      workerBase
	titles    driven.TitleStore
	versions  driven.VersionsClient
	histories driven.VersionHistoryStore

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewVersionHistoryWorker creates the worker.
func NewVersionHistoryWorker(
	threads driven.ThreadStore,
	titles driven.TitleStore,
	versions driven.VersionsClient,
	histories driven.VersionHistoryStore,
) *VersionHistoryWorker {
	return &VersionHistoryWorker{
		base:      workerBase{threads: threads, ttype: domain.ThreadVersionHistory},
		titles:    titles,
		versions:  versions,
		histories: histories,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// ThreadType identifies the worker.
func (w *VersionHistoryWorker) ThreadType() domain.ThreadType {
	return domain.ThreadVersionHistory
}

// Run processes every stored title in ascending number order.
func (w *VersionHistoryWorker) Run(ctx context.Context, restart bool) error {
	titles, err := w.titles.ListTitles(ctx)
	if err != nil {
		return fmt.Errorf("list titles: %w", err)
	}

	return w.base.forEachTitle(ctx, titles, restart, func(ctx context.Context, title *domain.Title) error {
		if err := w.processTitle(ctx, title); err != nil {
			return err
		}
		return w.sleep(ctx, versionerSleep)
	})
}

func (w *VersionHistoryWorker) processTitle(ctx context.Context, title *domain.Title) error {
	upstream, err := w.versions.ListVersions(ctx, title.Number)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}

	versions := make([]domain.Version, 0, len(upstream))
	for _, cv := range upstream {
		if cv.Removed || cv.AmendmentDate == "" {
			continue
		}
		date, err := time.Parse("2006-01-02", cv.AmendmentDate)
		if err != nil {
			continue
		}
		versions = append(versions, domain.Version{
			Date:       &date,
			Identifier: cv.Identifier,
			Name:       cv.Name,
			Part:       cv.Part,
			Type:       cv.Type,
		})
	}

	history := &domain.VersionHistory{
		TitleNumber: title.Number,
		LastUpdated: w.now(),
		Versions:    versions,
	}
	if err := w.histories.UpsertVersionHistory(ctx, history); err != nil {
		return fmt.Errorf("upsert version history: %w", err)
	}
	return nil
}
