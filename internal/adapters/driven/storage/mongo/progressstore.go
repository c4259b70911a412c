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
	_ driven.RefreshProgressStore = (*RefreshProgressStore)(nil)
	_ driven.RebuildProgressStore = (*RebuildProgressStore)(nil)
)

// RefreshProgressStore is a MongoDB implementation of
// driven.RefreshProgressStore.
type RefreshProgressStore struct {
	col *mongo.Collection
}

// SaveRefreshProgress stores or updates a progress row.
func (s *RefreshProgressStore) SaveRefreshProgress(ctx context.Context, p *domain.RefreshProgress) error {
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save refresh progress %s: %w", p.ID, err)
	}
	return nil
}

// GetRefreshProgress retrieves a progress row by id.
func (s *RefreshProgressStore) GetRefreshProgress(ctx context.Context, id string) (*domain.RefreshProgress, error) {
	var p domain.RefreshProgress
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh progress %s: %w", id, err)
	}
	return &p, nil
}

// FindResumableRefresh returns the newest in_progress or pending row of
// the given type.
func (s *RefreshProgressStore) FindResumableRefresh(ctx context.Context, t domain.RefreshType) (*domain.RefreshProgress, error) {
	filter := bson.M{
		"type":   t,
		"status": bson.M{"$in": []domain.JobStatus{domain.JobInProgress, domain.JobPending}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var p domain.RefreshProgress
	err := s.col.FindOne(ctx, filter, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find resumable %s refresh: %w", t, err)
	}
	return &p, nil
}

// OldestPendingManual returns the oldest pending manually-triggered row
// by creation time.
func (s *RefreshProgressStore) OldestPendingManual(ctx context.Context) (*domain.RefreshProgress, error) {
	filter := bson.M{
		"status":      domain.JobPending,
		"triggeredBy": bson.M{"$in": []domain.TriggerSource{domain.TriggerManual, domain.TriggerManualSingle}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	var p domain.RefreshProgress
	err := s.col.FindOne(ctx, filter, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pending manual refresh: %w", err)
	}
	return &p, nil
}

// AnyRefreshInProgress reports whether any refresh is in_progress.
func (s *RefreshProgressStore) AnyRefreshInProgress(ctx context.Context) (bool, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{"status": domain.JobInProgress})
	if err != nil {
		return false, fmt.Errorf("count in-progress refreshes: %w", err)
	}
	return count > 0, nil
}

// LatestRefresh returns the most recently created row of any type.
func (s *RefreshProgressStore) LatestRefresh(ctx context.Context) (*domain.RefreshProgress, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var p domain.RefreshProgress
	err := s.col.FindOne(ctx, bson.M{}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest refresh: %w", err)
	}
	return &p, nil
}

// RebuildProgressStore is a MongoDB implementation of
// driven.RebuildProgressStore.
type RebuildProgressStore struct {
	col *mongo.Collection
}

// SaveRebuildProgress stores or updates a rebuild row.
func (s *RebuildProgressStore) SaveRebuildProgress(ctx context.Context, p *domain.IndexRebuildProgress) error {
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save rebuild progress %s: %w", p.ID, err)
	}
	return nil
}

// GetRebuildProgress retrieves a rebuild row by id.
func (s *RebuildProgressStore) GetRebuildProgress(ctx context.Context, id string) (*domain.IndexRebuildProgress, error) {
	var p domain.IndexRebuildProgress
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rebuild progress %s: %w", id, err)
	}
	return &p, nil
}

// LatestRebuild returns the most recently created rebuild row.
func (s *RebuildProgressStore) LatestRebuild(ctx context.Context) (*domain.IndexRebuildProgress, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var p domain.IndexRebuildProgress
	err := s.col.FindOne(ctx, bson.M{}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest rebuild: %w", err)
	}
	return &p, nil
}
