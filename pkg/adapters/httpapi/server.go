// Package httpapi serves a core.GraphSource and core.Preferences over HTTP.
//
// It is the reference server for the http client adapter:
//
//	GET  /v1/users/{user}/graphs
//	POST /v1/users/{user}/graphs
//	GET  /v1/users/{user}/graphs/{id}/raw
//	PUT  /v1/users/{user}/graphs/{id}/raw
//	GET  /v1/users/{user}/graphs/{id}/parsed
//	GET  /v1/users/{user}/preferences
//	GET  /health
//	GET  /metrics
//
// Errors are JSON objects of the form {"error": "..."}.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// Backend is what the server exposes.
type Backend interface {
	core.GraphSource
	core.Preferences
}

// CreateRequest is the body of POST /v1/users/{user}/graphs.
type CreateRequest struct {
	ID          string `json:"id" validate:"required,max=128"`
	Title       string `json:"title" validate:"required,max=256"`
	Description string `json:"description" validate:"max=4096"`
}

// RawBody carries CNL source in both directions.
type RawBody struct {
	Raw string `json:"raw"`
}

// PreferencesBody is the response of GET /v1/users/{user}/preferences.
type PreferencesBody struct {
	Difficulty core.Difficulty `json:"difficulty"`
}

// ErrorBody is the payload of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry sets the registry that holds the HTTP metrics and backs
// /metrics. Defaults to a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithAllowedOrigins enables CORS for browser clients served from origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// Server routes HTTP requests to a Backend.
type Server struct {
	backend  Backend
	logger   *slog.Logger
	origins  []string
	registry *prometheus.Registry
	validate *validator.Validate
	metrics  *metrics
	router   chi.Router
}

// NewServer builds the router for backend.
func NewServer(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend:  backend,
		logger:   slog.Default(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = newMetrics(s.registry)
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.instrument)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/v1/users/{user}", func(r chi.Router) {
		r.Get("/preferences", s.getPreferences)
		r.Route("/graphs", func(r chi.Router) {
			r.Get("/", s.listGraphs)
			r.Post("/", s.createGraph)
			r.Get("/{id}/raw", s.getRaw)
			r.Put("/{id}/raw", s.putRaw)
			r.Get("/{id}/parsed", s.getParsed)
		})
	})
	return r
}

func (s *Server) listGraphs(w http.ResponseWriter, r *http.Request) {
	graphs, err := s.backend.ListGraphs(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if graphs == nil {
		graphs = []core.DocumentInfo{}
	}
	respondJSON(w, http.StatusOK, graphs)
}

func (s *Server) createGraph(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorBody{Error: formatValidationError(err)})
		return
	}

	user := chi.URLParam(r, "user")
	if err := s.backend.CreateDocument(r.Context(), user, req.ID, req.Title, req.Description); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Info("graph created", "user", user, "id", req.ID)
	respondJSON(w, http.StatusCreated, core.DocumentInfo{ID: req.ID, Title: req.Title})
}

func (s *Server) getRaw(w http.ResponseWriter, r *http.Request) {
	raw, err := s.backend.FetchRaw(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, RawBody{Raw: raw})
}

func (s *Server) putRaw(w http.ResponseWriter, r *http.Request) {
	var body RawBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid request body"})
		return
	}
	if err := s.backend.SaveDocument(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "id"), body.Raw); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getParsed(w http.ResponseWriter, r *http.Request) {
	parsed, err := s.backend.FetchParsed(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	data, err := core.EncodeParsed(parsed)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	d, err := s.backend.GetDifficulty(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PreferencesBody{Difficulty: d})
}

// StatusFor maps a backend error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, core.ErrMalformedStructure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	respondJSON(w, status, ErrorBody{Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
