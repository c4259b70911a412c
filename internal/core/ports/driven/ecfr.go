package driven

import (
	"context"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// RegistryClient fetches the upstream title registry.
type RegistryClient interface {
	// ListTitles returns every registered title, reserved ones included.
	ListTitles(ctx context.Context) ([]domain.RegistryTitle, error)
}

// TitleDownloader fetches the bulk XML for one title.
type TitleDownloader interface {
	// DownloadTitle returns the raw XML bytes for a title number.
	// Retries transient failures internally.
	DownloadTitle(ctx context.Context, number int) ([]byte, error)
}

// VersionsClient fetches the amendment timeline for one title.
type VersionsClient interface {
	// ListVersions returns the content versions for a title number in
	// upstream order.
	ListVersions(ctx context.Context, number int) ([]domain.ContentVersion, error)
}
