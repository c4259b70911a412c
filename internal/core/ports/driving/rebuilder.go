package driving

import (
	"context"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// IndexRebuilder drives full search index rebuilds.
type IndexRebuilder interface {
	// Rebuild deletes, recreates, and repopulates the search index,
	// recording per-step progress. Cancellation is observed at title
	// boundaries via the progress row's status.
	Rebuild(ctx context.Context, triggeredBy domain.TriggerSource) (*domain.IndexRebuildProgress, error)
}
