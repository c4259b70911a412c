package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// triggerPeriod is how often the watcher polls for work.
const triggerPeriod = 30 * time.Second

// TriggerWatcher polls for manually created pending refresh jobs and
// hands them to the refresher, one at a time. Pending triggers wait
// as long as it takes: a refresh job can run for days, and a trigger
// queued behind it must still execute when the job finishes.
type TriggerWatcher struct {
	progress  driven.RefreshProgressStore
	refresher driving.Refresher

	period time.Duration
	now    func() time.Time
}

// NewTriggerWatcher creates a watcher.
func NewTriggerWatcher(progress driven.RefreshProgressStore, refresher driving.Refresher) *TriggerWatcher {
	return &TriggerWatcher{
		progress:  progress,
		refresher: refresher,
		period:    triggerPeriod,
		now:       time.Now,
	}
}

// Run polls until the context ends.
func (w *TriggerWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Trigger watcher: %v", err)
			}
		}
	}
}

// Tick performs one poll: promote the oldest pending manual job if
// nothing is running.
func (w *TriggerWatcher) Tick(ctx context.Context) error {
	busy, err := w.progress.AnyRefreshInProgress(ctx)
	if err != nil {
		return err
	}
	if busy {
		return nil
	}

	pending, err := w.progress.OldestPendingManual(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	started := w.now()
	pending.Status = domain.JobInProgress
	pending.StartedAt = &started
	if err := w.progress.SaveRefreshProgress(ctx, pending); err != nil {
		return err
	}

	logger.Info("Promoting %s trigger %s", pending.TriggeredBy, pending.ID)
	return w.refresher.Run(ctx, pending)
}
