package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// SettingsStore is an in-memory implementation of driven.SettingsStore.
type SettingsStore struct {
	mu       sync.RWMutex
	settings map[string]domain.Setting
	seq      int
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{settings: make(map[string]domain.Setting)}
}

// GetSetting retrieves a setting by key.
func (s *SettingsStore) GetSetting(_ context.Context, key string) (*domain.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setting, ok := s.settings[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &setting, nil
}

// SaveSetting stores or updates a setting keyed on Key.
func (s *SettingsStore) SaveSetting(_ context.Context, setting *domain.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if setting.ID == "" {
		s.seq++
		setting.ID = fmt.Sprintf("setting-%02d", s.seq)
	}
	s.settings[setting.Key] = *setting
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

	if keywords, ok := setting.Value.([]string); ok {
		return keywords, nil
	}
	return nil, nil
}
