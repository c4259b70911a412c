package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// TitleStore persists Title records.
type TitleStore interface {
	// UpsertTitle stores or updates a title keyed on its number.
	UpsertTitle(ctx context.Context, title *domain.Title) error

	// GetTitle retrieves a title by number.
	// Returns domain.ErrNotFound if absent.
	GetTitle(ctx context.Context, number int) (*domain.Title, error)

	// ListTitles returns all stored titles in ascending number order.
	ListTitles(ctx context.Context) ([]domain.Title, error)

	// SetLastAnalyzed stamps the analytics timestamp for a title.
	SetLastAnalyzed(ctx context.Context, number int, at time.Time) error
}

// BatchResult reports the outcome of a bulk document insert.
type BatchResult struct {
	Inserted int
	Failed   int
}

// DocumentCursor streams documents one at a time in a fixed sort order.
type DocumentCursor interface {
	// Next advances to the next document. Returns false when exhausted
	// or on error; check Err after the loop.
	Next(ctx context.Context) bool

	// Document returns the current document.
	Document() *domain.Document

	// Err returns the first error encountered while iterating.
	Err() error

	// Close releases the cursor.
	Close(ctx context.Context) error
}

// DocumentStore persists the parsed CFR document tree.
type DocumentStore interface {
	// DeleteByTitle removes every document for a title number.
	DeleteByTitle(ctx context.Context, titleNumber int) (int, error)

	// InsertBatch inserts documents with unordered continue-on-error
	// semantics. Oversized batches degrade to single-record inserts.
	InsertBatch(ctx context.Context, docs []domain.Document) (BatchResult, error)

	// GetDocument retrieves a document by id.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetTitleRoot returns the title-type document for a title number.
	GetTitleRoot(ctx context.Context, titleNumber int) (*domain.Document, error)

	// DistinctTitleNumbers lists the distinct title numbers present,
	// ascending.
	DistinctTitleNumbers(ctx context.Context) ([]int, error)

	// CountByTitle counts documents for a title number. A zero title
	// number counts the whole collection.
	CountByTitle(ctx context.Context, titleNumber int) (int, error)

	// CountSections counts section-type documents.
	CountSections(ctx context.Context) (int, error)

	// StreamByTitle streams a title's documents in ascending id order.
	StreamByTitle(ctx context.Context, titleNumber int) (DocumentCursor, error)

	// StreamSections streams section documents in ascending id order,
	// starting at fromID when non-empty.
	StreamSections(ctx context.Context, fromID string) (DocumentCursor, error)
}

// MetricStore persists analytics snapshots.
type MetricStore interface {
	// AppendMetric inserts a new metric row. Never mutates prior rows.
	AppendMetric(ctx context.Context, m *domain.Metric) error

	// LatestMetricSince returns the most recent metric for a title with
	// analysisDate at or after the cutoff. ErrNotFound if none.
	LatestMetricSince(ctx context.Context, titleNumber int, cutoff time.Time) (*domain.Metric, error)

	// SetAgeDistribution updates the age histogram on an existing
	// metric row.
	SetAgeDistribution(ctx context.Context, metricID string, dist *domain.AgeDistribution, at time.Time) error
}

// VersionHistoryStore persists per-title amendment timelines.
type VersionHistoryStore interface {
	// UpsertVersionHistory stores or replaces the timeline for a title.
	UpsertVersionHistory(ctx context.Context, vh *domain.VersionHistory) error

	// GetVersionHistory retrieves the timeline for a title.
	// Returns domain.ErrNotFound if absent.
	GetVersionHistory(ctx context.Context, titleNumber int) (*domain.VersionHistory, error)
}

// SectionAnalysisStore persists LLM section analyses.
type SectionAnalysisStore interface {
	// UpsertSectionAnalysis stores or replaces the analysis keyed on
	// document id.
	UpsertSectionAnalysis(ctx context.Context, sa *domain.SectionAnalysis) error

	// HasAnalysis reports whether an analysis exists for the document
	// at the given analysis version.
	HasAnalysis(ctx context.Context, documentID, version string) (bool, error)
}

// ThreadStore persists worker lifecycle rows.
type ThreadStore interface {
	// GetThread retrieves the row for a worker kind, creating a stopped
	// row if absent.
	GetThread(ctx context.Context, t domain.ThreadType) (*domain.AnalysisThread, error)

	// SaveThread stores the full row.
	SaveThread(ctx context.Context, thread *domain.AnalysisThread) error

	// SaveThreadCheckpoint persists progress, current item, statistics
	// and resume data, leaving status and the lifecycle timestamps
	// untouched. Workers checkpoint through this so a stop request
	// written concurrently by the manager is never overwritten.
	SaveThreadCheckpoint(ctx context.Context, thread *domain.AnalysisThread) error

	// ListThreads returns all worker rows.
	ListThreads(ctx context.Context) ([]domain.AnalysisThread, error)

	// SetThreadStatus updates only the status field.
	SetThreadStatus(ctx context.Context, t domain.ThreadType, status domain.ThreadStatus) error
}

// RefreshProgressStore persists refresh job state.
type RefreshProgressStore interface {
	// SaveRefreshProgress stores or updates a progress row.
	SaveRefreshProgress(ctx context.Context, p *domain.RefreshProgress) error

	// GetRefreshProgress retrieves a progress row by id.
	GetRefreshProgress(ctx context.Context, id string) (*domain.RefreshProgress, error)

	// FindResumableRefresh returns the newest in_progress or pending
	// row of the given type. ErrNotFound if none.
	FindResumableRefresh(ctx context.Context, t domain.RefreshType) (*domain.RefreshProgress, error)

	// OldestPendingManual returns the oldest pending manually-triggered
	// row by creation time. ErrNotFound if none.
	OldestPendingManual(ctx context.Context) (*domain.RefreshProgress, error)

	// AnyRefreshInProgress reports whether any refresh is in_progress.
	AnyRefreshInProgress(ctx context.Context) (bool, error)

	// LatestRefresh returns the most recently created row of any type.
	// ErrNotFound if none.
	LatestRefresh(ctx context.Context) (*domain.RefreshProgress, error)
}

// RebuildProgressStore persists index rebuild state.
type RebuildProgressStore interface {
	// SaveRebuildProgress stores or updates a rebuild row.
	SaveRebuildProgress(ctx context.Context, p *domain.IndexRebuildProgress) error

	// GetRebuildProgress retrieves a rebuild row by id.
	GetRebuildProgress(ctx context.Context, id string) (*domain.IndexRebuildProgress, error)

	// LatestRebuild returns the most recently created rebuild row.
	// ErrNotFound if none.
	LatestRebuild(ctx context.Context) (*domain.IndexRebuildProgress, error)
}

// SettingsStore persists global key/value settings.
type SettingsStore interface {
	// GetSetting retrieves a setting by key.
	// Returns domain.ErrNotFound if absent.
	GetSetting(ctx context.Context, key string) (*domain.Setting, error)

	// SaveSetting stores or updates a setting keyed on Key.
	SaveSetting(ctx context.Context, s *domain.Setting) error

	// RegulatoryKeywords returns the configured keyword list, seeding
	// the default list if the setting is absent.
	RegulatoryKeywords(ctx context.Context) ([]string, error)
}
