package handlers

import (
	"net/http"

	"github.com/medleads/clinic-insight/internal/application/services"
)

// ConfigHandler serves the static configuration catalogs.
type ConfigHandler struct {
	config *services.ConfigService
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(config *services.ConfigService) *ConfigHandler {
	return &ConfigHandler{config: config}
}

// GetSection handles GET /api/config/{section}.
func (h *ConfigHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("section") {
	case "departments":
		respondWithJSON(w, http.StatusOK, map[string]any{"departments": h.config.Departments()})
	case "purposes":
		respondWithJSON(w, http.StatusOK, map[string]any{"purposes": h.config.Purposes()})
	case "patient-types":
		respondWithJSON(w, http.StatusOK, map[string]any{"patient_types": h.config.PatientTypes()})
	case "ai-models":
		respondWithJSON(w, http.StatusOK, map[string]any{"ai_models": h.config.AIModels()})
	case "output-fields":
		respondWithJSON(w, http.StatusOK, map[string]any{"output_fields": h.config.OutputFields()})
	default:
		respondWithError(w, http.StatusNotFound, "unknown config section")
	}
}
