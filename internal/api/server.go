package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/coursekit/draft-engine/internal/config"
	"github.com/coursekit/draft-engine/internal/enrich"
	"github.com/coursekit/draft-engine/internal/session"
	"github.com/coursekit/draft-engine/internal/storage"
	"github.com/coursekit/draft-engine/internal/submit"
	"github.com/coursekit/draft-engine/internal/templates"
)

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	sessions *session.Manager
	loader   *templates.Loader
	pipeline *submit.Pipeline
	runner   *enrich.Runner
	jobs     enrich.Store
	bus      *enrich.EventBus
	repo     storage.Repository
}

// NewServer creates a new API server. repo may be nil when the audit log is
// not configured.
func NewServer(
	cfg config.ServerConfig,
	sessions *session.Manager,
	loader *templates.Loader,
	pipeline *submit.Pipeline,
	runner *enrich.Runner,
	jobs enrich.Store,
	bus *enrich.EventBus,
	repo storage.Repository,
) *Server {
	s := &Server{
		config:   cfg,
		sessions: sessions,
		loader:   loader,
		pipeline: pipeline,
		runner:   runner,
		jobs:     jobs,
		bus:      bus,
		repo:     repo,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(WithPrincipal)

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", s.handleCreateDraft)
			r.Get("/", s.handleListDrafts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDraft)
				r.Delete("/", s.handleDeleteDraft)
				r.Patch("/metadata", s.handleSetMetadata)

				r.Post("/sections", s.handleAddSection)
				r.Delete("/sections/{section}", s.handleRemoveSection)
				r.Post("/sections/{section}/lessons", s.handleAddLesson)
				r.Put("/sections/{section}/lessons/{lesson}", s.handleReplaceLesson)
				r.Delete("/sections/{section}/lessons/{lesson}", s.handleRemoveLesson)

				r.Put("/assets/{slot}", s.handleStageAsset)
				r.Delete("/assets/{slot}", s.handleClearAsset)

				r.Get("/validate", s.handleValidate)
				r.Post("/advance", s.handleAdvance)
				r.Post("/retreat", s.handleRetreat)

				r.Post("/enrich", s.handleEnrich)
				r.Get("/enrich/{job}", s.handleEnrichStatus)
				r.Get("/events", s.handleEventsWS)

				r.Post("/submit", s.handleSubmit)
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Get("/{name}", s.handleGetTemplate)
		})

		r.Get("/submissions", s.handleListSubmissions)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
