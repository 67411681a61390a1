package handlers

import (
	"context"
	"net/http"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// competitiveAnalyzer is the analysis surface the handler consumes.
type competitiveAnalyzer interface {
	Analyze(ctx context.Context, clinic entities.ClinicInfo, searchRadiusM int, additionalInfo string) (*entities.CompetitiveReport, error)
}

// competitiveAnalysisRequest is the POST /api/competitive-analysis body.
type competitiveAnalysisRequest struct {
	ClinicInfo     entities.ClinicInfo `json:"clinic_info"`
	SearchRadius   int                 `json:"search_radius"`
	AdditionalInfo string              `json:"additional_info,omitempty"`
}

// CompetitiveHandler handles competitive-analysis requests.
type CompetitiveHandler struct {
	analyzer competitiveAnalyzer
}

// NewCompetitiveHandler creates a new competitive handler.
func NewCompetitiveHandler(analyzer competitiveAnalyzer) *CompetitiveHandler {
	return &CompetitiveHandler{analyzer: analyzer}
}

// AnalyzeCompetition handles POST /api/competitive-analysis.
func (h *CompetitiveHandler) AnalyzeCompetition(w http.ResponseWriter, r *http.Request) {
	var req competitiveAnalysisRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.SearchRadius == 0 && req.ClinicInfo.SearchRadiusM > 0 {
		req.SearchRadius = req.ClinicInfo.SearchRadiusM
	}

	report, err := h.analyzer.Analyze(r.Context(), req.ClinicInfo, req.SearchRadius, req.AdditionalInfo)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}
