package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure both stores implement their interfaces.
var (
	_ driven.VersionHistoryStore  = (*VersionHistoryStore)(nil)
	_ driven.SectionAnalysisStore = (*SectionAnalysisStore)(nil)
)

// VersionHistoryStore is a MongoDB implementation of
// driven.VersionHistoryStore.
type VersionHistoryStore struct {
	col *mongo.Collection
}

// UpsertVersionHistory stores or replaces the timeline for a title.
func (s *VersionHistoryStore) UpsertVersionHistory(ctx context.Context, vh *domain.VersionHistory) error {
	filter := bson.M{"titleNumber": vh.TitleNumber}
	update := bson.M{"$set": bson.M{
		"titleNumber": vh.TitleNumber,
		"lastUpdated": vh.LastUpdated,
		"versions":    vh.Versions,
	}}

	_, err := s.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert version history for title %d: %w", vh.TitleNumber, err)
	}
	return nil
}

// GetVersionHistory retrieves the timeline for a title.
func (s *VersionHistoryStore) GetVersionHistory(ctx context.Context, titleNumber int) (*domain.VersionHistory, error) {
	var vh domain.VersionHistory
	err := s.col.FindOne(ctx, bson.M{"titleNumber": titleNumber}).Decode(&vh)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version history for title %d: %w", titleNumber, err)
	}
	return &vh, nil
}

// SectionAnalysisStore is a MongoDB implementation of
// driven.SectionAnalysisStore.
type SectionAnalysisStore struct {
	col *mongo.Collection
}

// UpsertSectionAnalysis stores or replaces the analysis keyed on
// document id.
func (s *SectionAnalysisStore) UpsertSectionAnalysis(ctx context.Context, sa *domain.SectionAnalysis) error {
	if sa.ID == "" {
		sa.ID = primitive.NewObjectID().Hex()
	}
	filter := bson.M{"documentId": sa.DocumentID}
	update := bson.M{"$set": bson.M{
		"titleNumber":                   sa.TitleNumber,
		"sectionIdentifier":             sa.SectionIdentifier,
		"analysisDate":                  sa.AnalysisDate,
		"analysisVersion":               sa.AnalysisVersion,
		"summary":                       sa.Summary,
		"antiquatedScore":               sa.AntiquatedScore,
		"businessUnfriendlyScore":       sa.BusinessUnfriendlyScore,
		"antiquatedExplanation":         sa.AntiquatedExplanation,
		"businessUnfriendlyExplanation": sa.BusinessUnfriendlyExpl,
		"metadata":                      sa.Metadata,
	}}

	_, err := s.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert analysis for document %s: %w", sa.DocumentID, err)
	}
	return nil
}

// HasAnalysis reports whether an analysis exists for the document at
// the given analysis version.
func (s *SectionAnalysisStore) HasAnalysis(ctx context.Context, documentID, version string) (bool, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{
		"documentId":      documentID,
		"analysisVersion": version,
	})
	if err != nil {
		return false, fmt.Errorf("check analysis for document %s: %w", documentID, err)
	}
	return count > 0, nil
}
