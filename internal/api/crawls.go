package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/dispatcher"
	"github.com/JakeFAU/seo-crawler/internal/queue"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

const (
	defaultJobLimit   = 50
	maxJobLimit       = 500
	defaultPagesLimit = 100
	maxPagesLimit     = 1000
	readTimeout       = 3 * time.Second
	enqueueTimeout    = 5 * time.Second
	maxRequestBytes   = 1 << 20
)

// submitCrawl handles POST /v1/crawls. Omitted fields take the configured
// job defaults. It returns 202 with the job ID, 400 for malformed or invalid
// jobs, and 503 when the queue is full or the service is shutting down.
func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	job := req.apply(s.cfg.JobDefaults())
	rec, err := s.jobs.Submit(ctx, job)
	switch {
	case err == nil:
	case errors.Is(err, crawler.ErrInvalidJob):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "service is shutting down")
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "crawl queue is full")
		return
	default:
		s.logger.Error("submit crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit crawl")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": rec.ID,
		"status": string(rec.Status),
	})
}

// listCrawls handles GET /v1/crawls?status=&limit=&offset=.
func (s *Server) listCrawls(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *crawler.JobStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, parseErr := parseStatus(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	jobs, err := s.repo.ListJobs(ctx, status, limit, offset)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list crawls")
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for _, rec := range jobs {
		out = append(out, toJobDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// getCrawl handles GET /v1/crawls/{job_id}.
func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	rec, ok := s.loadJob(ctx, w, chi.URLParam(r, "job_id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": toJobDTO(rec)})
}

// getCrawlResult handles GET /v1/crawls/{job_id}/result?limit=&offset=.
// Pages are returned in crawl order.
func (s *Server) getCrawlResult(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultPagesLimit, maxPagesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	jobID := chi.URLParam(r, "job_id")
	rec, ok := s.loadJob(ctx, w, jobID)
	if !ok {
		return
	}
	pages, err := s.repo.ListPages(ctx, jobID, limit, offset)
	if err != nil {
		s.logger.Error("list pages failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load crawl pages")
		return
	}
	if pages == nil {
		pages = []crawler.CrawledPage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":   toJobDTO(rec),
		"pages": pages,
	})
}

// getLiveStatus handles GET /v1/crawls/{job_id}/live. It is served from the
// live-status cache and returns 404 when none is configured.
func (s *Server) getLiveStatus(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		writeError(w, http.StatusNotFound, "live status not enabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	jobID := chi.URLParam(r, "job_id")
	st, found, err := s.live.Lookup(ctx, jobID)
	if err != nil {
		s.logger.Error("live status lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "live status unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no live status for job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"live": st})
}

// cancelCrawl handles POST /v1/crawls/{job_id}/cancel. It returns 202 once
// cancellation is requested, 404 for unknown jobs and 409 for finished ones.
func (s *Server) cancelCrawl(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	rec, err := s.jobs.Cancel(r.Context(), jobID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"job": toJobDTO(rec)})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, dispatcher.ErrJobTerminal):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "job already finished",
			"job":   toJobDTO(rec),
		})
	default:
		s.logger.Error("cancel crawl failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to cancel crawl")
	}
}

func (s *Server) loadJob(ctx context.Context, w http.ResponseWriter, jobID string) (store.JobRecord, bool) {
	rec, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return store.JobRecord{}, false
		}
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return store.JobRecord{}, false
	}
	return rec, true
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (crawler.JobStatus, error) {
	switch status := crawler.JobStatus(strings.ToLower(input)); status {
	case crawler.JobStatusQueued, crawler.JobStatusRunning, crawler.JobStatusSucceeded,
		crawler.JobStatusFailed, crawler.JobStatusCanceled:
		return status, nil
	default:
		return "", errors.New("invalid status")
	}
}
