package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encoding response failed")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"detail": message})
}

// respondWithAppError maps a service-layer error to its HTTP status. Internal
// errors never leak their message.
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeInternal:
			log.Error().Err(err).Msg("internal error")
			respondWithError(w, http.StatusInternalServerError, "internal server error")
		case apperrors.ErrorTypeRateLimited:
			w.Header().Set("Retry-After", "60")
			respondWithError(w, appErr.HTTPStatus(), appErr.Message)
		default:
			respondWithError(w, appErr.HTTPStatus(), appErr.Message)
		}
		return
	}
	log.Error().Err(err).Msg("unclassified error")
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
