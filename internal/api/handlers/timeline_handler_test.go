package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/application/services"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

type stubTimelines struct {
	result       *services.TimelineResult
	err          error
	withAnalysis bool
}

func (s *stubTimelines) Timeline(_ context.Context, _, _ string, _ int) (*services.TimelineResult, error) {
	return s.result, s.err
}

func (s *stubTimelines) TimelineWithAnalysis(_ context.Context, _, _ string, _ int) (*services.TimelineResult, error) {
	s.withAnalysis = true
	return s.result, s.err
}

func TestSearchTimeline_OK(t *testing.T) {
	timelines := &stubTimelines{result: &services.TimelineResult{
		Department: "内科",
		Phases:     []services.TimelinePhase{{Label: "直前（3日以内）"}},
	}}
	handler := NewTimelineHandler(timelines)

	req := httptest.NewRequest(http.MethodPost, "/api/search-timeline",
		strings.NewReader(`{"department":"内科","limit":50}`))
	w := httptest.NewRecorder()

	handler.SearchTimeline(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, timelines.withAnalysis)

	var result services.TimelineResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "内科", result.Department)
	require.Len(t, result.Phases, 1)
}

func TestSearchTimelineAnalysis_UsesAnalysisPath(t *testing.T) {
	timelines := &stubTimelines{result: &services.TimelineResult{Department: "内科", Analysis: "分析"}}
	handler := NewTimelineHandler(timelines)

	req := httptest.NewRequest(http.MethodPost, "/api/search-timeline-analysis",
		strings.NewReader(`{"department":"内科"}`))
	w := httptest.NewRecorder()

	handler.SearchTimelineAnalysis(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, timelines.withAnalysis)
}

func TestSearchTimeline_NotFound(t *testing.T) {
	timelines := &stubTimelines{err: apperrors.NewNotFoundError("no keyword data for department: 形成外科")}
	handler := NewTimelineHandler(timelines)

	req := httptest.NewRequest(http.MethodPost, "/api/search-timeline",
		strings.NewReader(`{"department":"形成外科"}`))
	w := httptest.NewRecorder()

	handler.SearchTimeline(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
