package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

type stubSettingsManager struct {
	settings  entities.AdminSettings
	updateErr error

	gotModels entities.ModelSettings
	gotLimits map[string]string
}

func (s *stubSettingsManager) Get() entities.AdminSettings { return s.settings }

func (s *stubSettingsManager) UpdateModels(models entities.ModelSettings) (entities.AdminSettings, error) {
	s.gotModels = models
	if s.updateErr != nil {
		return entities.AdminSettings{}, s.updateErr
	}
	s.settings.Models = models
	return s.settings, nil
}

func (s *stubSettingsManager) UpdateLimits(limits map[string]string) (entities.AdminSettings, error) {
	s.gotLimits = limits
	if s.updateErr != nil {
		return entities.AdminSettings{}, s.updateErr
	}
	return s.settings, nil
}

func TestGetSettings(t *testing.T) {
	settings := &stubSettingsManager{settings: entities.DefaultAdminSettings()}
	handler := NewAdminHandler(settings, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil)
	w := httptest.NewRecorder()

	handler.GetSettings(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body entities.AdminSettings
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "gpt-4o", body.Models.TextAPIModel)
}

func TestUpdateModels(t *testing.T) {
	settings := &stubSettingsManager{settings: entities.DefaultAdminSettings()}
	handler := NewAdminHandler(settings, nil)

	body := `{"text_api_model":"claude-sonnet-4-20250514","image_api_model":"dall-e-3"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/settings/models", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.UpdateModels(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "claude-sonnet-4-20250514", settings.gotModels.TextAPIModel)
}

func TestUpdateModels_ValidationError(t *testing.T) {
	settings := &stubSettingsManager{updateErr: apperrors.NewValidationError("text_api_model and image_api_model are required")}
	handler := NewAdminHandler(settings, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/settings/models", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	handler.UpdateModels(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateCharLimits(t *testing.T) {
	settings := &stubSettingsManager{settings: entities.DefaultAdminSettings()}
	handler := NewAdminHandler(settings, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/settings/char-limits",
		strings.NewReader(`{"reason":"400"}`))
	w := httptest.NewRecorder()

	handler.UpdateCharLimits(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"reason": "400"}, settings.gotLimits)
}
