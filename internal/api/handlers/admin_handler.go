package handlers

import (
	"net/http"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	"github.com/medleads/clinic-insight/internal/ragstore"
)

const maxUploadBytes = 20 << 20

// settingsManager is the admin-settings surface the handler consumes.
type settingsManager interface {
	Get() entities.AdminSettings
	UpdateModels(models entities.ModelSettings) (entities.AdminSettings, error)
	UpdateLimits(limits map[string]string) (entities.AdminSettings, error)
}

// AdminHandler handles the admin settings and RAG management endpoints.
type AdminHandler struct {
	settings settingsManager
	rag      *ragstore.Store
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(settings settingsManager, rag *ragstore.Store) *AdminHandler {
	return &AdminHandler{settings: settings, rag: rag}
}

// GetSettings handles GET /api/admin/settings.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.settings.Get())
}

// UpdateModels handles POST /api/admin/settings/models.
func (h *AdminHandler) UpdateModels(w http.ResponseWriter, r *http.Request) {
	var models entities.ModelSettings
	if !decodeJSONBody(w, r, &models) {
		return
	}

	updated, err := h.settings.UpdateModels(models)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// UpdateCharLimits handles POST /api/admin/settings/char-limits.
func (h *AdminHandler) UpdateCharLimits(w http.ResponseWriter, r *http.Request) {
	var limits map[string]string
	if !decodeJSONBody(w, r, &limits) {
		return
	}

	updated, err := h.settings.UpdateLimits(limits)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// UploadRAG handles POST /api/admin/rag/upload: multipart CSV plus a
// specialty form field.
func (h *AdminHandler) UploadRAG(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	specialty := r.FormValue("specialty")
	if specialty == "" {
		respondWithError(w, http.StatusBadRequest, "specialty is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "csv file is required")
		return
	}
	defer file.Close()

	count, err := h.rag.IngestCSV(r.Context(), specialty, header.Filename, file)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"specialty":    specialty,
		"record_count": count,
	})
}

// ListRAG handles GET /api/admin/rag/list.
func (h *AdminHandler) ListRAG(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.rag.ListUploads(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"uploads": uploads})
}

// DeleteRAG handles DELETE /api/admin/rag/{specialty}.
func (h *AdminHandler) DeleteRAG(w http.ResponseWriter, r *http.Request) {
	specialty := r.PathValue("specialty")
	if specialty == "" {
		respondWithError(w, http.StatusBadRequest, "specialty is required")
		return
	}

	if err := h.rag.DeleteSpecialty(r.Context(), specialty); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"deleted": specialty})
}
