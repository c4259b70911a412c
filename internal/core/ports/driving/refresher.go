package driving

import (
	"context"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// Refresher drives title download jobs.
type Refresher interface {
	// InitialDownload runs a full first-time download of every
	// non-reserved title, resuming any in-flight initial job.
	InitialDownload(ctx context.Context) (*domain.RefreshProgress, error)

	// Refresh re-downloads titles whose upstream issue date is newer
	// than the stored copy, resuming any in-flight refresh job.
	Refresh(ctx context.Context) (*domain.RefreshProgress, error)

	// RefreshSingleTitle force-downloads one title regardless of
	// freshness.
	RefreshSingleTitle(ctx context.Context, number int) (*domain.RefreshProgress, error)

	// Run executes an existing progress row (used by the trigger
	// watcher after promoting a pending manual job).
	Run(ctx context.Context, progress *domain.RefreshProgress) error
}
