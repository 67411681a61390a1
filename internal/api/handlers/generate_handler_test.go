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

	"github.com/medleads/clinic-insight/internal/domain/entities"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

type stubPersonas struct {
	result *entities.PersonaResult
	err    error
	gotReq entities.PersonaRequest
}

func (s *stubPersonas) Generate(_ context.Context, req entities.PersonaRequest) (*entities.PersonaResult, error) {
	s.gotReq = req
	return s.result, s.err
}

func TestGeneratePersona_OK(t *testing.T) {
	personas := &stubPersonas{result: &entities.PersonaResult{
		Profile:  entities.PersonaRequest{Department: "内科"},
		Details:  entities.PersonaDetails{Personality: "慎重"},
		ImageURL: "https://example.com/p.png",
	}}
	handler := NewGenerateHandler(personas)

	body := `{"department":"内科","age":"45","chief_complaint":"頭痛"}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.GeneratePersona(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "内科", personas.gotReq.Department)
	assert.Equal(t, "頭痛", personas.gotReq.ChiefComplaint)

	var result entities.PersonaResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "慎重", result.Details.Personality)
	assert.Equal(t, "https://example.com/p.png", result.ImageURL)
}

func TestGeneratePersona_InvalidJSON(t *testing.T) {
	handler := NewGenerateHandler(&stubPersonas{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader("{broken"))
	w := httptest.NewRecorder()

	handler.GeneratePersona(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeneratePersona_ValidationError(t *testing.T) {
	personas := &stubPersonas{err: apperrors.NewValidationError("department is required")}
	handler := NewGenerateHandler(personas)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	handler.GeneratePersona(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "department is required", body["detail"])
}

func TestGeneratePersona_UpstreamError(t *testing.T) {
	personas := &stubPersonas{err: apperrors.NewUpstreamError("text generation failed for gpt-4o", nil)}
	handler := NewGenerateHandler(personas)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"department":"内科"}`))
	w := httptest.NewRecorder()

	handler.GeneratePersona(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGeneratePersona_CanceledRequest(t *testing.T) {
	personas := &stubPersonas{err: context.Canceled}
	handler := NewGenerateHandler(personas)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"department":"内科"}`))
	w := httptest.NewRecorder()

	handler.GeneratePersona(w, req)

	assert.Equal(t, 499, w.Code)
}

func TestGeneratePersona_InternalErrorHidesDetail(t *testing.T) {
	personas := &stubPersonas{err: apperrors.NewInternalError("nil pointer in prompt builder", nil)}
	handler := NewGenerateHandler(personas)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"department":"内科"}`))
	w := httptest.NewRecorder()

	handler.GeneratePersona(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "internal server error", body["detail"])
	assert.NotContains(t, w.Body.String(), "nil pointer")
}
