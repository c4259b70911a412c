package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure MetricStore implements the interface.
var _ driven.MetricStore = (*MetricStore)(nil)

// MetricStore is a MongoDB implementation of driven.MetricStore.
// Metric rows are append-only; only the age histogram is ever patched
// onto an existing row.
type MetricStore struct {
	col *mongo.Collection
}

// AppendMetric inserts a new metric row.
func (s *MetricStore) AppendMetric(ctx context.Context, m *domain.Metric) error {
	if m.ID == "" {
		m.ID = primitive.NewObjectID().Hex()
	}
	if _, err := s.col.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("append metric for title %d: %w", m.TitleNumber, err)
	}
	return nil
}

// LatestMetricSince returns the most recent metric for a title with
// analysisDate at or after the cutoff.
func (s *MetricStore) LatestMetricSince(ctx context.Context, titleNumber int, cutoff time.Time) (*domain.Metric, error) {
	filter := bson.M{
		"titleNumber":  titleNumber,
		"analysisDate": bson.M{"$gte": cutoff},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "analysisDate", Value: -1}})

	var m domain.Metric
	err := s.col.FindOne(ctx, filter, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest metric for title %d: %w", titleNumber, err)
	}
	return &m, nil
}

// SetAgeDistribution updates the age histogram on an existing metric
// row.
func (s *MetricStore) SetAgeDistribution(ctx context.Context, metricID string, dist *domain.AgeDistribution, at time.Time) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": metricID},
		bson.M{"$set": bson.M{
			"metrics.regulationAgeDistribution": dist,
			"analysisDate":                      at,
		}},
	)
	if err != nil {
		return fmt.Errorf("set age distribution on metric %s: %w", metricID, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
