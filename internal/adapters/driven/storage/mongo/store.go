package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connection tuning. Each worker owns its own Store, so the pool stays
// small.
const (
	maxPoolSize            = 5
	serverSelectionTimeout = 30 * time.Second
	socketTimeout          = 45 * time.Second
)

// Collection names.
const (
	colTitles           = "titles"
	colDocuments        = "documents"
	colMetrics          = "metrics"
	colVersionHistories = "version_histories"
	colSectionAnalyses  = "section_analyses"
	colThreads          = "analysis_threads"
	colRefreshProgress  = "refresh_progress"
	colRebuildProgress  = "index_rebuild_progress"
	colSettings         = "settings"
)

// Store is a unified MongoDB-backed storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to MongoDB and ensures indexes. The database name
// is taken from the URI path, falling back to "ecfr".
func NewStore(ctx context.Context, uri string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(maxPoolSize).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetSocketTimeout(socketTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}

	dbName := databaseFromURI(uri)

	s := &Store{
		client: client,
		db:     client.Database(dbName),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	return s, nil
}

// databaseFromURI extracts the database name from a mongodb URI,
// falling back to "ecfr" when the URI carries none.
func databaseFromURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "ecfr"
	}
	name := strings.TrimPrefix(parsed.Path, "/")
	if name == "" {
		return "ecfr"
	}
	return name
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database exposes the underlying database for the blob store.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Titles returns the TitleStore view.
func (s *Store) Titles() *TitleStore {
	return &TitleStore{col: s.db.Collection(colTitles)}
}

// Documents returns the DocumentStore view.
func (s *Store) Documents() *DocumentStore {
	return &DocumentStore{col: s.db.Collection(colDocuments)}
}

// Metrics returns the MetricStore view.
func (s *Store) Metrics() *MetricStore {
	return &MetricStore{col: s.db.Collection(colMetrics)}
}

// VersionHistories returns the VersionHistoryStore view.
func (s *Store) VersionHistories() *VersionHistoryStore {
	return &VersionHistoryStore{col: s.db.Collection(colVersionHistories)}
}

// SectionAnalyses returns the SectionAnalysisStore view.
func (s *Store) SectionAnalyses() *SectionAnalysisStore {
	return &SectionAnalysisStore{col: s.db.Collection(colSectionAnalyses)}
}

// Threads returns the ThreadStore view.
func (s *Store) Threads() *ThreadStore {
	return &ThreadStore{col: s.db.Collection(colThreads)}
}

// RefreshProgress returns the RefreshProgressStore view.
func (s *Store) RefreshProgress() *RefreshProgressStore {
	return &RefreshProgressStore{col: s.db.Collection(colRefreshProgress)}
}

// RebuildProgress returns the RebuildProgressStore view.
func (s *Store) RebuildProgress() *RebuildProgressStore {
	return &RebuildProgressStore{col: s.db.Collection(colRebuildProgress)}
}

// Settings returns the SettingsStore view.
func (s *Store) Settings() *SettingsStore {
	return &SettingsStore{col: s.db.Collection(colSettings)}
}

// ensureIndexes creates the uniqueness and lookup indexes the engine
// relies on.
func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colTitles: {
			{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colDocuments: {
			{Keys: bson.D{{Key: "titleNumber", Value: 1}, {Key: "identifier", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "titleNumber", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "type", Value: 1}}},
		},
		colMetrics: {
			{Keys: bson.D{{Key: "titleNumber", Value: 1}, {Key: "analysisDate", Value: -1}}},
		},
		colVersionHistories: {
			{Keys: bson.D{{Key: "titleNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSectionAnalyses: {
			{Keys: bson.D{{Key: "documentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colThreads: {
			{Keys: bson.D{{Key: "threadType", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colRefreshProgress: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colSettings: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("collection %s: %w", col, err)
		}
	}
	return nil
}
