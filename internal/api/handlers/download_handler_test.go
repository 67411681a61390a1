package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/adapters/export"
)

const downloadBody = `{
	"profile": {"department": "内科", "name": "山田花子", "age": "45"},
	"details": {
		"personality": "慎重で几帳面。",
		"reason": "続く頭痛が心配になった。",
		"behavior": "口コミを比較してから予約する。",
		"reviews": "星評価と短文を残す。",
		"values": "健康第一。",
		"demands": "説明の丁寧さ。"
	},
	"image_url": "https://example.com/p.png"
}`

func TestDownloadPDF(t *testing.T) {
	handler := NewDownloadHandler(export.NewRenderer())

	req := httptest.NewRequest(http.MethodPost, "/api/download/pdf", strings.NewReader(downloadBody))
	w := httptest.NewRecorder()

	handler.DownloadPDF(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename*=UTF-8''")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-1.4"))
}

func TestDownloadPPT(t *testing.T) {
	handler := NewDownloadHandler(export.NewRenderer())

	req := httptest.NewRequest(http.MethodPost, "/api/download/ppt", strings.NewReader(downloadBody))
	w := httptest.NewRecorder()

	handler.DownloadPPT(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".pptx")
	// ZIP local-file-header magic.
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
}

func TestDownload_RejectsEmptyDetails(t *testing.T) {
	handler := NewDownloadHandler(export.NewRenderer())

	req := httptest.NewRequest(http.MethodPost, "/api/download/pdf",
		strings.NewReader(`{"profile":{"department":"内科"},"details":{}}`))
	w := httptest.NewRecorder()

	handler.DownloadPDF(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload_InvalidJSON(t *testing.T) {
	handler := NewDownloadHandler(export.NewRenderer())

	req := httptest.NewRequest(http.MethodPost, "/api/download/ppt", strings.NewReader("???"))
	w := httptest.NewRecorder()

	handler.DownloadPPT(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
