package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure TitleStore implements the interface.
var _ driven.TitleStore = (*TitleStore)(nil)

// TitleStore is a MongoDB implementation of driven.TitleStore.
type TitleStore struct {
	col *mongo.Collection
}

// UpsertTitle stores or updates a title keyed on its number.
func (s *TitleStore) UpsertTitle(ctx context.Context, title *domain.Title) error {
	filter := bson.M{"number": title.Number}
	update := bson.M{"$set": title}

	_, err := s.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert title %d: %w", title.Number, err)
	}
	return nil
}

// GetTitle retrieves a title by number.
func (s *TitleStore) GetTitle(ctx context.Context, number int) (*domain.Title, error) {
	var title domain.Title
	err := s.col.FindOne(ctx, bson.M{"number": number}).Decode(&title)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get title %d: %w", number, err)
	}
	return &title, nil
}

// ListTitles returns all stored titles in ascending number order.
func (s *TitleStore) ListTitles(ctx context.Context) ([]domain.Title, error) {
	cursor, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer cursor.Close(ctx)

	var titles []domain.Title
	if err := cursor.All(ctx, &titles); err != nil {
		return nil, fmt.Errorf("decode titles: %w", err)
	}
	return titles, nil
}

// SetLastAnalyzed stamps the analytics timestamp for a title.
func (s *TitleStore) SetLastAnalyzed(ctx context.Context, number int, at time.Time) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"number": number},
		bson.M{"$set": bson.M{"lastAnalyzed": at}},
	)
	if err != nil {
		return fmt.Errorf("set lastAnalyzed for title %d: %w", number, err)
	}
	return nil
}
