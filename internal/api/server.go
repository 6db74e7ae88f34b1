// Package api exposes the HTTP interface for the research agent service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dangvonguyen/research-agent/internal/crawler"
	"github.com/dangvonguyen/research-agent/internal/metrics"
	"github.com/dangvonguyen/research-agent/internal/orchestrator"
	"github.com/dangvonguyen/research-agent/internal/registry"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	requestTimeout   = 60 * time.Second
)

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router     chi.Router
	service    *orchestrator.Service
	jobStore   crawler.JobStore
	paperStore crawler.PaperStore
	registry   *registry.Registry
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	service *orchestrator.Service,
	jobStore crawler.JobStore,
	paperStore crawler.PaperStore,
	reg *registry.Registry,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service:    service,
		jobStore:   jobStore,
		paperStore: paperStore,
		registry:   reg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/crawlers/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/", s.listJobs)
			r.Get("/{job_id}", s.getJob)
		})
		r.Route("/papers", func(r chi.Router) {
			r.Get("/", s.listPapers)
			r.Get("/{paper_id}", s.getPaper)
		})
		r.Route("/configs", func(r chi.Router) {
			r.Get("/", s.listConfigs)
			r.Post("/", s.createConfig)
			r.Get("/{name}", s.getConfig)
			r.Patch("/{name}", s.updateConfig)
			r.Delete("/{name}", s.deleteConfig)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req crawler.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	jobID, err := s.service.Submit(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := crawler.JobFilter{
		Status: crawler.JobStatus(r.URL.Query().Get("status")),
	}
	filter.Skip, filter.Limit = pagination(r)

	jobs, err := s.jobStore.ListJobs(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if jobs == nil {
		jobs = []crawler.CrawlerJob{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobStore.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	filter := crawler.PaperFilter{
		JobID: r.URL.Query().Get("job_id"),
	}
	filter.Skip, filter.Limit = pagination(r)

	papers, err := s.paperStore.ListPapers(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if papers == nil {
		papers = []crawler.Paper{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
}

func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	paper, err := s.paperStore.GetPaper(r.Context(), chi.URLParam(r, "paper_id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, paper)
}

func (s *Server) listConfigs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"configs": s.registry.List()})
}

func (s *Server) createConfig(w http.ResponseWriter, r *http.Request) {
	var cfg crawler.SourceConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	created, err := s.registry.Create(cfg)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.registry.Resolve(chi.URLParam(r, "name"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

// configPatch carries the mutable config knobs; nil fields are untouched.
type configPatch struct {
	BaseURL       *string  `json:"base_url"`
	RateLimit     *float64 `json:"rate_limit"`
	Burst         *int     `json:"burst"`
	MaxAttempts   *int     `json:"max_attempts"`
	BackoffBase   *string  `json:"backoff_base"`
	BackoffMax    *string  `json:"backoff_max"`
	FetchTimeout  *string  `json:"fetch_timeout"`
	JobTimeout    *string  `json:"job_timeout"`
	MaxConcurrent *int     `json:"max_concurrent"`
	MaxPapers     *int     `json:"max_papers"`
	OutputDir     *string  `json:"output_dir"`
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	durations := map[string]*string{
		"backoff_base":  patch.BackoffBase,
		"backoff_max":   patch.BackoffMax,
		"fetch_timeout": patch.FetchTimeout,
		"job_timeout":   patch.JobTimeout,
	}
	parsed := make(map[string]time.Duration, len(durations))
	for field, raw := range durations {
		if raw == nil {
			continue
		}
		d, err := time.ParseDuration(*raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid duration for "+field)
			return
		}
		parsed[field] = d
	}

	updated, err := s.registry.Update(chi.URLParam(r, "name"), func(cfg *crawler.SourceConfig) {
		if patch.BaseURL != nil {
			cfg.BaseURL = *patch.BaseURL
		}
		if patch.RateLimit != nil {
			cfg.RateLimit = *patch.RateLimit
		}
		if patch.Burst != nil {
			cfg.Burst = *patch.Burst
		}
		if patch.MaxAttempts != nil {
			cfg.MaxAttempts = *patch.MaxAttempts
		}
		if d, ok := parsed["backoff_base"]; ok {
			cfg.BackoffBase = d
		}
		if d, ok := parsed["backoff_max"]; ok {
			cfg.BackoffMax = d
		}
		if d, ok := parsed["fetch_timeout"]; ok {
			cfg.FetchTimeout = d
		}
		if d, ok := parsed["job_timeout"]; ok {
			cfg.JobTimeout = d
		}
		if patch.MaxConcurrent != nil {
			cfg.MaxConcurrent = *patch.MaxConcurrent
		}
		if patch.MaxPapers != nil {
			cfg.MaxPapers = *patch.MaxPapers
		}
		if patch.OutputDir != nil {
			cfg.OutputDir = *patch.OutputDir
		}
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(chi.URLParam(r, "name")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pagination(r *http.Request) (skip, limit int) {
	limit = defaultListLimit
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			skip = v
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return skip, limit
}

// writeDomainError maps domain errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crawler.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, crawler.ErrConfigNotFound),
		errors.Is(err, crawler.ErrJobNotFound),
		errors.Is(err, crawler.ErrPaperNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
