package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// personaGenerator is the persona surface the handler consumes.
type personaGenerator interface {
	Generate(ctx context.Context, req entities.PersonaRequest) (*entities.PersonaResult, error)
}

// GenerateHandler handles persona generation requests.
type GenerateHandler struct {
	personas personaGenerator
}

// NewGenerateHandler creates a new generate handler.
func NewGenerateHandler(personas personaGenerator) *GenerateHandler {
	return &GenerateHandler{personas: personas}
}

// GeneratePersona handles POST /api/generate.
func (h *GenerateHandler) GeneratePersona(w http.ResponseWriter, r *http.Request) {
	var req entities.PersonaRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.personas.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; status code is advisory only.
			respondWithError(w, 499, "request canceled")
			return
		}
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
