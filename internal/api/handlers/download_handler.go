package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/medleads/clinic-insight/internal/adapters/export"
)

// DownloadHandler serves the persona document as a downloadable artifact.
type DownloadHandler struct {
	renderer *export.Renderer
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(renderer *export.Renderer) *DownloadHandler {
	return &DownloadHandler{renderer: renderer}
}

// DownloadPDF handles POST /api/download/pdf.
func (h *DownloadHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, h.renderer.RenderPDF)
}

// DownloadPPT handles POST /api/download/ppt.
func (h *DownloadHandler) DownloadPPT(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, h.renderer.RenderPPT)
}

func (h *DownloadHandler) download(w http.ResponseWriter, r *http.Request, render func(export.PersonaDocument) (*export.Artifact, error)) {
	var doc export.PersonaDocument
	if !decodeJSONBody(w, r, &doc) {
		return
	}
	if doc.Details.Empty() {
		respondWithError(w, http.StatusBadRequest, "details must not be empty")
		return
	}

	artifact, err := render(doc)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	filename := fmt.Sprintf("ペルソナ_%s.%s", time.Now().Format("20060102"), artifact.Extension)
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		return
	}
}
