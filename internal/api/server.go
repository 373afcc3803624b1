package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/protorefine/internal/config"
	"github.com/dgallion1/protorefine/internal/pipeline"
)

// Server is the HTTP API server for protorefine.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/refine", s.handleRefine)
		r.Post("/api/refine/batch", s.handleBatchRefine)
		r.Get("/api/refine/{jobID}/status", s.handleRefineStatus)
		r.Get("/api/refine/{jobID}/result", s.handleRefineResult)
		r.Get("/api/stats/refine", s.handleRefineStats)

		r.Get("/api/unknowns", s.handleListUnknowns)
		r.Get("/api/protocols", s.handleListProtocols)

		r.Get("/api/published", s.handleListPublished)
		r.Get("/api/published/{protocol}", s.handleGetPublished)
		r.Delete("/api/published/{protocol}", s.handleDeletePublished)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
