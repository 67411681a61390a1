package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

// SettingsService owns the admin-settings singleton persisted to one JSON
// file. Reads take a short read-lock; writes replace the file atomically via
// temp file, fsync and rename.
type SettingsService struct {
	path string

	mu       sync.RWMutex
	settings entities.AdminSettings
}

// NewSettingsService loads (or initializes) the settings file at path.
// Missing fields are migrated to defaults and the file is rewritten, so a
// settings file from an older release is always usable.
func NewSettingsService(path string) (*SettingsService, error) {
	s := &SettingsService{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *SettingsService) Get() entities.AdminSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySettings(s.settings)
}

// UpdateModels replaces the model selection and persists.
func (s *SettingsService) UpdateModels(models entities.ModelSettings) (entities.AdminSettings, error) {
	if models.TextAPIModel == "" || models.ImageAPIModel == "" {
		return entities.AdminSettings{}, apperrors.NewValidationError("text_api_model and image_api_model are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Models = models
	if err := s.persistLocked(); err != nil {
		return entities.AdminSettings{}, err
	}
	return copySettings(s.settings), nil
}

// UpdateLimits merges per-field character budgets and persists. Unknown field
// IDs and non-numeric budgets are rejected.
func (s *SettingsService) UpdateLimits(limits map[string]string) (entities.AdminSettings, error) {
	if len(limits) == 0 {
		return entities.AdminSettings{}, apperrors.NewValidationError("limits must not be empty")
	}
	for id, budget := range limits {
		if !knownOutputField(id) {
			return entities.AdminSettings{}, apperrors.NewValidationError("unknown output field: " + id)
		}
		if n, err := strconv.Atoi(budget); err != nil || n <= 0 {
			return entities.AdminSettings{}, apperrors.NewValidationError(
				fmt.Sprintf("limit for %s must be a positive integer, got %q", id, budget))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, budget := range limits {
		s.settings.Limits[id] = budget
	}
	if err := s.persistLocked(); err != nil {
		return entities.AdminSettings{}, err
	}
	return copySettings(s.settings), nil
}

func (s *SettingsService) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.settings = entities.DefaultAdminSettings()
		log.Info().Str("path", s.path).Msg("settings file missing, writing defaults")
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.persistLocked()
	}
	if err != nil {
		return fmt.Errorf("reading settings file: %w", err)
	}

	var loaded entities.AdminSettings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing settings file %s: %w", s.path, err)
	}

	if migrateSettings(&loaded) {
		log.Info().Str("path", s.path).Msg("settings file migrated to current schema")
		s.settings = loaded
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.persistLocked()
	}

	s.settings = loaded
	return nil
}

// migrateSettings fills fields absent from older files, reporting whether
// anything changed.
func migrateSettings(settings *entities.AdminSettings) bool {
	defaults := entities.DefaultAdminSettings()
	changed := false

	if settings.Models.TextAPIModel == "" {
		settings.Models.TextAPIModel = defaults.Models.TextAPIModel
		changed = true
	}
	if settings.Models.ImageAPIModel == "" {
		settings.Models.ImageAPIModel = defaults.Models.ImageAPIModel
		changed = true
	}
	if settings.Limits == nil {
		settings.Limits = make(map[string]string, len(defaults.Limits))
		changed = true
	}
	for id, budget := range defaults.Limits {
		if _, ok := settings.Limits[id]; !ok {
			settings.Limits[id] = budget
			changed = true
		}
	}
	return changed
}

func (s *SettingsService) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".admin_settings-*.json")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp settings file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

func copySettings(settings entities.AdminSettings) entities.AdminSettings {
	out := settings
	out.Limits = make(map[string]string, len(settings.Limits))
	for k, v := range settings.Limits {
		out.Limits[k] = v
	}
	return out
}

func knownOutputField(id string) bool {
	for _, field := range entities.OutputFieldIDs {
		if field == id {
			return true
		}
	}
	return false
}
