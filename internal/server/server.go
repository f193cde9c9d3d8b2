package server

import (
	"log/slog"
	"net/http"

	"report-dashboard/internal/handlers"
	"report-dashboard/internal/services"
)

type Server struct {
	reports     *services.Reports
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

func NewServer(reports *services.Reports, logger *slog.Logger, maxUpload int64) *Server {
	s := &Server{
		reports:     reports,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(reports, logger, maxUpload),
		sseHandlers: handlers.NewSSEHandlers(reports, logger, maxUpload),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", s.sseHandlers.HandleIndex)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/reports", s.apiHandlers.HandleCatalog)
	s.mux.HandleFunc("GET /api/reports/{report}", s.apiHandlers.HandleBundle)
	s.mux.HandleFunc("POST /api/reports/{report}/upload", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("DELETE /api/reports/{report}", s.apiHandlers.HandleClear)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/reports/{report}", s.sseHandlers.HandleReport)
	s.mux.HandleFunc("POST /sse/reports/{report}/upload", s.sseHandlers.HandleUpload)
	s.mux.HandleFunc("DELETE /sse/reports/{report}", s.sseHandlers.HandleClear)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
