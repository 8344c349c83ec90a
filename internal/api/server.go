package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/config"
	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/metrics"
	"github.com/JakeFAU/seo-crawler/internal/progress/sinks"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

// JobService accepts and cancels crawls. *dispatcher.Dispatcher satisfies it.
type JobService interface {
	Submit(ctx context.Context, job crawler.CrawlJob) (store.JobRecord, error)
	Cancel(ctx context.Context, jobID string) (store.JobRecord, error)
}

// LiveStatusReader serves the latest progress snapshot of a job.
type LiveStatusReader interface {
	Lookup(ctx context.Context, jobID string) (sinks.LiveStatus, bool, error)
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Live   LiveStatusReader
	Ready  []Pinger
	Logger *zap.Logger
}

// Server wires HTTP handlers to the job service and repository.
type Server struct {
	router  chi.Router
	jobs    JobService
	repo    store.Repository
	live    LiveStatusReader
	ready   []Pinger
	cfg     config.Config
	timeout time.Duration
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(jobs JobService, repo store.Repository, cfg config.Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		jobs:    jobs,
		repo:    repo,
		live:    opts.Live,
		ready:   opts.Ready,
		cfg:     cfg,
		timeout: readTimeout,
		logger:  opts.Logger,
	}
	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/v1/crawls", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/", s.submitCrawl)
		r.Get("/", s.listCrawls)
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/", s.getCrawl)
			r.Get("/result", s.getCrawlResult)
			r.Get("/live", s.getLiveStatus)
			r.Post("/cancel", s.cancelCrawl)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	for _, p := range s.ready {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "dependency unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
