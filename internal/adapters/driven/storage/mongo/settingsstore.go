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

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// SettingsStore is a MongoDB implementation of driven.SettingsStore.
type SettingsStore struct {
	col *mongo.Collection
}

// GetSetting retrieves a setting by key.
func (s *SettingsStore) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	var setting domain.Setting
	err := s.col.FindOne(ctx, bson.M{"key": key}).Decode(&setting)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &setting, nil
}

// SaveSetting stores or updates a setting keyed on Key.
func (s *SettingsStore) SaveSetting(ctx context.Context, setting *domain.Setting) error {
	if setting.ID == "" {
		setting.ID = primitive.NewObjectID().Hex()
	}
	filter := bson.M{"key": setting.Key}
	update := bson.M{"$set": bson.M{
		"key":         setting.Key,
		"value":       setting.Value,
		"description": setting.Description,
	}}

	_, err := s.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save setting %s: %w", setting.Key, err)
	}
	return nil
}

// RegulatoryKeywords returns the configured keyword list, seeding the
// default list if the setting is absent.
func (s *SettingsStore) RegulatoryKeywords(ctx context.Context) ([]string, error) {
	setting, err := s.GetSetting(ctx, domain.SettingRegulatoryKeywords)
	if errors.Is(err, domain.ErrNotFound) {
		seed := &domain.Setting{
			Key:         domain.SettingRegulatoryKeywords,
			Value:       domain.DefaultRegulatoryKeywords,
			Description: "Keywords counted by the text metrics worker",
		}
		if err := s.SaveSetting(ctx, seed); err != nil {
			return nil, err
		}
		return domain.DefaultRegulatoryKeywords, nil
	}
	if err != nil {
		return nil, err
	}

	return keywordList(setting.Value), nil
}

// keywordList coerces the stored value into a string slice. BSON
// arrays decode as primitive.A.
func keywordList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case primitive.A:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
