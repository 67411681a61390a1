package handlers

import (
	"context"
	"net/http"

	"github.com/medleads/clinic-insight/internal/application/services"
)

// timelineQuerier is the timeline surface the handler consumes.
type timelineQuerier interface {
	Timeline(ctx context.Context, department, chiefComplaint string, limit int) (*services.TimelineResult, error)
	TimelineWithAnalysis(ctx context.Context, department, chiefComplaint string, limit int) (*services.TimelineResult, error)
}

// timelineRequest is the body of both search-timeline endpoints.
type timelineRequest struct {
	Department     string `json:"department"`
	ChiefComplaint string `json:"chief_complaint,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// TimelineHandler handles the search-timeline endpoints.
type TimelineHandler struct {
	timelines timelineQuerier
}

// NewTimelineHandler creates a new timeline handler.
func NewTimelineHandler(timelines timelineQuerier) *TimelineHandler {
	return &TimelineHandler{timelines: timelines}
}

// SearchTimeline handles POST /api/search-timeline.
func (h *TimelineHandler) SearchTimeline(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.timelines.Timeline(r.Context(), req.Department, req.ChiefComplaint, req.Limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// SearchTimelineAnalysis handles POST /api/search-timeline-analysis.
func (h *TimelineHandler) SearchTimelineAnalysis(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.timelines.TimelineWithAnalysis(r.Context(), req.Department, req.ChiefComplaint, req.Limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
