package routes

import (
	"net/http"

	"github.com/medleads/clinic-insight/internal/api/handlers"
	"github.com/medleads/clinic-insight/internal/api/middleware"
)

// Router wires handlers, auth realms and cross-cutting middleware.
type Router struct {
	mux *http.ServeMux

	generateHandler    *handlers.GenerateHandler
	competitiveHandler *handlers.CompetitiveHandler
	downloadHandler    *handlers.DownloadHandler
	adminHandler       *handlers.AdminHandler
	configHandler      *handlers.ConfigHandler
	timelineHandler    *handlers.TimelineHandler

	auth            *middleware.BasicAuth
	cacheMiddleware *middleware.CacheMiddleware
}

// NewRouter creates a new router.
func NewRouter(
	generateHandler *handlers.GenerateHandler,
	competitiveHandler *handlers.CompetitiveHandler,
	downloadHandler *handlers.DownloadHandler,
	adminHandler *handlers.AdminHandler,
	configHandler *handlers.ConfigHandler,
	timelineHandler *handlers.TimelineHandler,
	auth *middleware.BasicAuth,
	cacheMiddleware *middleware.CacheMiddleware,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		generateHandler:    generateHandler,
		competitiveHandler: competitiveHandler,
		downloadHandler:    downloadHandler,
		adminHandler:       adminHandler,
		configHandler:      configHandler,
		timelineHandler:    timelineHandler,
		auth:               auth,
		cacheMiddleware:    cacheMiddleware,
	}
}

// SetupRoutes configures all application routes.
func (r *Router) SetupRoutes() http.Handler {
	// Health check stays unauthenticated for load balancers.
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			return
		}
	})

	// Generation endpoints
	r.mux.HandleFunc("POST /api/generate", r.auth.RequireUser(r.generateHandler.GeneratePersona))
	r.mux.HandleFunc("POST /api/download/pdf", r.auth.RequireUser(r.downloadHandler.DownloadPDF))
	r.mux.HandleFunc("POST /api/download/ppt", r.auth.RequireUser(r.downloadHandler.DownloadPPT))

	// Competitive analysis
	r.mux.HandleFunc("POST /api/competitive-analysis", r.auth.RequireUser(r.competitiveHandler.AnalyzeCompetition))

	// Search timeline
	r.mux.HandleFunc("POST /api/search-timeline", r.auth.RequireUser(r.timelineHandler.SearchTimeline))
	r.mux.HandleFunc("POST /api/search-timeline-analysis", r.auth.RequireUser(r.timelineHandler.SearchTimelineAnalysis))

	// Static configuration catalogs
	r.mux.HandleFunc("GET /api/config/{section}", r.auth.RequireUser(r.configHandler.GetSection))

	// Admin settings
	r.mux.HandleFunc("GET /api/admin/settings", r.auth.RequireAdmin(r.adminHandler.GetSettings))
	r.mux.HandleFunc("POST /api/admin/settings/models", r.auth.RequireAdmin(r.adminHandler.UpdateModels))
	r.mux.HandleFunc("POST /api/admin/settings/char-limits", r.auth.RequireAdmin(r.adminHandler.UpdateCharLimits))

	// RAG management
	r.mux.HandleFunc("POST /api/admin/rag/upload", r.auth.RequireAdmin(r.adminHandler.UploadRAG))
	r.mux.HandleFunc("GET /api/admin/rag/list", r.auth.RequireAdmin(r.adminHandler.ListRAG))
	r.mux.HandleFunc("DELETE /api/admin/rag/{specialty}", r.auth.RequireAdmin(r.adminHandler.DeleteRAG))

	// Middleware is applied in reverse order; CORS wraps everything so
	// preflights and cached responses both carry the headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = middleware.CORSMiddleware(handler)

	return handler
}
