package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure IndexRebuilder implements the interface.
var _ driving.IndexRebuilder = (*IndexRebuilder)(nil)

// rebuildBatchSize is how many search documents go into one bulk
// request during a rebuild.
const rebuildBatchSize = 100

// IndexRebuilder drops and repopulates the search index from the
// document store, recording each step on an IndexRebuildProgress row.
type IndexRebuilder struct {
	documents driven.DocumentStore
	search    driven.SearchIndex
	progress  driven.RebuildProgressStore

	now func() time.Time
}

// NewIndexRebuilder creates a rebuilder.
func NewIndexRebuilder(
	documents driven.DocumentStore,
	search driven.SearchIndex,
	progress driven.RebuildProgressStore,
) *IndexRebuilder {
	return &IndexRebuilder{
		documents: documents,
		search:    search,
		progress:  progress,
		now:       time.Now,
	}
}

// Rebuild deletes, recreates and repopulates the search index. Batch
// failures are counted and skipped; only step-level errors fail the
// job. Cancellation is observed at title boundaries via the progress
// row's status.
func (r *IndexRebuilder) Rebuild(ctx context.Context, triggeredBy domain.TriggerSource) (*domain.IndexRebuildProgress, error) {
	started := r.now()
	progress := &domain.IndexRebuildProgress{
		ID:          uuid.NewString(),
		Status:      domain.JobInProgress,
		StartTime:   &started,
		CreatedAt:   started,
		TriggeredBy: triggeredBy,
	}
	if err := r.progress.SaveRebuildProgress(ctx, progress); err != nil {
		return nil, err
	}

	total, err := r.documents.CountByTitle(ctx, 0)
	if err != nil {
		return progress, r.fail(ctx, progress, fmt.Errorf("count documents: %w", err))
	}
	progress.TotalDocuments = total

	if err := r.search.DeleteIndex(ctx); err != nil {
		progress.Operations.DeleteIndex.Error = err.Error()
		return progress, r.fail(ctx, progress, fmt.Errorf("delete index: %w", err))
	}
	progress.Operations.DeleteIndex.Completed = true
	if err := r.progress.SaveRebuildProgress(ctx, progress); err != nil {
		return progress, err
	}

	if err := r.search.EnsureIndex(ctx); err != nil {
		progress.Operations.CreateIndex.Error = err.Error()
		return progress, r.fail(ctx, progress, fmt.Errorf("create index: %w", err))
	}
	progress.Operations.CreateIndex.Completed = true
	if err := r.progress.SaveRebuildProgress(ctx, progress); err != nil {
		return progress, err
	}

	if err := r.indexAllTitles(ctx, progress); err != nil {
		progress.Operations.IndexDocuments.Error = err.Error()
		return progress, r.fail(ctx, progress, err)
	}

	if progress.Status == domain.JobCancelled {
		return progress, r.progress.SaveRebuildProgress(ctx, progress)
	}

	progress.Operations.IndexDocuments.Completed = true
	progress.Status = domain.JobCompleted
	ended := r.now()
	progress.EndTime = &ended
	logger.Info("Index rebuild %s completed: %d indexed, %d failed",
		progress.ID, progress.IndexedDocuments, progress.FailedDocuments)
	return progress, r.progress.SaveRebuildProgress(ctx, progress)
}

// indexAllTitles streams every title's documents into the index in
// batches, checking for cancellation at each title boundary.
func (r *IndexRebuilder) indexAllTitles(ctx context.Context, progress *domain.IndexRebuildProgress) error {
	numbers, err := r.documents.DistinctTitleNumbers(ctx)
	if err != nil {
		return fmt.Errorf("distinct title numbers: %w", err)
	}

	for _, number := range numbers {
		cancelled, err := r.cancelled(ctx, progress.ID)
		if err != nil {
			return err
		}
		if cancelled {
			logger.Info("Index rebuild %s cancelled at title %d", progress.ID, number)
			progress.Status = domain.JobCancelled
			return nil
		}

		progress.CurrentTitle = number
		if err := r.indexTitle(ctx, progress, number); err != nil {
			return fmt.Errorf("title %d: %w", number, err)
		}
		if err := r.progress.SaveRebuildProgress(ctx, progress); err != nil {
			return err
		}
	}
	return nil
}

func (r *IndexRebuilder) indexTitle(ctx context.Context, progress *domain.IndexRebuildProgress, number int) error {
	cursor, err := r.documents.StreamByTitle(ctx, number)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	batch := make([]domain.SearchDocument, 0, rebuildBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		progress.ProcessedDocuments += len(batch)

		res, err := r.search.BulkIndex(ctx, batch)
		if err != nil {
			logger.Warn("Bulk index batch for title %d: %v", number, err)
			progress.FailedDocuments += len(batch)
		} else {
			progress.IndexedDocuments += res.Indexed
			progress.FailedDocuments += res.Failed
		}
		batch = batch[:0]
	}

	for cursor.Next(ctx) {
		batch = append(batch, domain.NewSearchDocument(cursor.Document()))
		if len(batch) == rebuildBatchSize {
			flush()
		}
	}
	if err := cursor.Err(); err != nil {
		return err
	}
	flush()
	return nil
}

// cancelled re-reads the progress row to observe operator cancellation.
func (r *IndexRebuilder) cancelled(ctx context.Context, id string) (bool, error) {
	row, err := r.progress.GetRebuildProgress(ctx, id)
	if err != nil {
		return false, err
	}
	return row.Status == domain.JobCancelled, nil
}

func (r *IndexRebuilder) fail(ctx context.Context, progress *domain.IndexRebuildProgress, cause error) error {
	progress.Status = domain.JobFailed
	progress.Error = cause.Error()
	ended := r.now()
	progress.EndTime = &ended
	if err := r.progress.SaveRebuildProgress(ctx, progress); err != nil {
		logger.Error("Record rebuild failure: %v", err)
	}
	return cause
}
