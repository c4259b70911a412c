package driving

import (
	"context"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// StartOptions configures a worker start request.
type StartOptions struct {
	// Restart clears the worker's checkpoint before starting.
	Restart bool
}

// ThreadManager owns the four analytics worker lifecycles.
type ThreadManager interface {
	// StartThread starts one worker. Starting a running worker is a
	// no-op returning domain.ErrAlreadyRunning.
	StartThread(ctx context.Context, t domain.ThreadType, opts StartOptions) error

	// StopThread requests a cooperative stop; the worker exits at its
	// next checkpoint with its checkpoint preserved.
	StopThread(ctx context.Context, t domain.ThreadType) error

	// RestartThread stops the worker, clears its checkpoint, and starts
	// it again.
	RestartThread(ctx context.Context, t domain.ThreadType) error

	// StartAll starts every worker.
	StartAll(ctx context.Context) error

	// StopAll stops every worker and waits for acknowledgement.
	StopAll(ctx context.Context) error

	// GetThreadStatus returns the persisted row for every worker.
	GetThreadStatus(ctx context.Context) ([]domain.AnalysisThread, error)
}
