package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// workerBase provides the checkpoint and stop-flag handling shared by
// every analytics worker. Workers mutate only progress, statistics and
// resume data; status belongs to the thread manager.
type workerBase struct {
	threads driven.ThreadStore
	ttype   domain.ThreadType
}

// stopRequested reads the persisted stop flag.
func (b *workerBase) stopRequested(ctx context.Context) (bool, error) {
	thread, err := b.threads.GetThread(ctx, b.ttype)
	if err != nil {
		return false, err
	}
	return thread.StopRequested(), nil
}

// checkpoint applies mutate to a freshly loaded thread row and
// persists it through the field-level checkpoint write, which never
// touches status. A stop request set by the manager between the load
// and the save therefore survives.
func (b *workerBase) checkpoint(ctx context.Context, mutate func(*domain.AnalysisThread)) error {
	thread, err := b.threads.GetThread(ctx, b.ttype)
	if err != nil {
		return err
	}
	mutate(thread)
	return b.threads.SaveThreadCheckpoint(ctx, thread)
}

// resumeTitleIndex returns the index after the checkpointed title, or
// zero on restart or when the checkpoint is absent.
func (b *workerBase) resumeTitleIndex(ctx context.Context, restart bool, listLen int) (int, error) {
	if restart {
		return 0, nil
	}
	thread, err := b.threads.GetThread(ctx, b.ttype)
	if err != nil {
		return 0, err
	}
	if thread.Resume == nil || thread.Resume.LastTitleIndex == nil {
		return 0, nil
	}
	next := *thread.Resume.LastTitleIndex + 1
	if next < 0 || next > listLen {
		return 0, nil
	}
	return next, nil
}

// forEachTitle iterates titles ascending with resume, per-item error
// isolation, statistics and a stop check between items.
func (b *workerBase) forEachTitle(
	ctx context.Context,
	titles []domain.Title,
	restart bool,
	process func(ctx context.Context, title *domain.Title) error,
) error {
	start, err := b.resumeTitleIndex(ctx, restart, len(titles))
	if err != nil {
		return err
	}

	processed, failed := 0, 0
	var elapsed time.Duration

	for i := start; i < len(titles); i++ {
		stop, err := b.stopRequested(ctx)
		if err != nil {
			return err
		}
		if stop {
			return domain.ErrStopRequested
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		title := &titles[i]
		began := time.Now()
		if err := process(ctx, title); err != nil {
			logger.Error("%s: title %d: %v", b.ttype, title.Number, err)
			failed++
		} else {
			processed++
		}
		elapsed += time.Since(began)

		idx := i
		current := i + 1
		err = b.checkpoint(ctx, func(t *domain.AnalysisThread) {
			t.Progress = domain.ThreadProgress{
				Current:    current,
				Total:      len(titles),
				Percentage: percentage(current, len(titles)),
			}
			t.CurrentItem = fmt.Sprintf("title-%d", title.Number)
			t.Resume = &domain.ResumeData{LastTitleIndex: &idx}
			t.Statistics = domain.ThreadStatistics{
				ItemsProcessed:     processed,
				ItemsFailed:        failed,
				AverageTimePerItem: averageSeconds(elapsed, processed+failed),
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func percentage(current, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

func averageSeconds(elapsed time.Duration, items int) float64 {
	if items == 0 {
		return 0
	}
	return elapsed.Seconds() / float64(items)
}
