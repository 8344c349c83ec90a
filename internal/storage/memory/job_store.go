package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

var _ store.Repository = (*JobStore)(nil)

// JobStore provides an in-memory store.Repository for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]store.JobRecord
	pages map[string]*pageSet
}

// pageSet keeps pages in first-seen order while allowing replacement by URL.
type pageSet struct {
	order []string
	byURL map[string]crawler.CrawledPage
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:  make(map[string]store.JobRecord),
		pages: make(map[string]*pageSet),
	}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job crawler.CrawlJob, submittedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("create job %s: %w", job.ID, store.ErrExists)
	}
	s.jobs[job.ID] = store.JobRecord{
		ID:          job.ID,
		Job:         job,
		Status:      crawler.JobStatusQueued,
		SubmittedAt: submittedAt,
	}
	return nil
}

// MarkJobRunning moves the job to running unless it already finished.
func (s *JobStore) MarkJobRunning(_ context.Context, jobID string, startedAt time.Time) error {
	return s.update(jobID, func(rec *store.JobRecord) {
		if rec.Terminal() {
			return
		}
		rec.Status = crawler.JobStatusRunning
		if rec.StartedAt == nil {
			rec.StartedAt = pointerTime(startedAt)
		}
	})
}

// UpsertPage records page for the job, replacing an earlier row for the same URL.
func (s *JobStore) UpsertPage(_ context.Context, jobID string, page crawler.CrawledPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("upsert page %s: %w", jobID, store.ErrNotFound)
	}
	set := s.pages[jobID]
	if set == nil {
		set = &pageSet{byURL: make(map[string]crawler.CrawledPage)}
		s.pages[jobID] = set
	}
	if _, seen := set.byURL[page.URL]; !seen {
		set.order = append(set.order, page.URL)
		rec.Pages++
		s.jobs[jobID] = rec
	}
	set.byURL[page.URL] = page
	return nil
}

// IncrementErrors bumps the job's error counter while the job is live.
func (s *JobStore) IncrementErrors(_ context.Context, jobID string, _ crawler.CrawlError) error {
	return s.update(jobID, func(rec *store.JobRecord) {
		if !rec.Terminal() {
			rec.Errors++
		}
	})
}

// CompleteJob stores the terminal status and summary of result. A job that
// already finished keeps its first outcome.
func (s *JobStore) CompleteJob(_ context.Context, result crawler.CrawlResult) error {
	return s.update(result.JobID, func(rec *store.JobRecord) {
		if rec.Terminal() {
			return
		}
		rec.Status = result.Status
		rec.Completed = result.Completed
		rec.ErrorText = result.Err
		rec.Stats = result.Stats
		rec.Errors = len(result.Errors)
		if rec.StartedAt == nil && !result.StartedAt.IsZero() {
			rec.StartedAt = pointerTime(result.StartedAt)
		}
		finished := result.FinishedAt
		if finished.IsZero() {
			finished = time.Now().UTC()
		}
		rec.FinishedAt = pointerTime(finished)
	})
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (store.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return store.JobRecord{}, fmt.Errorf("get job %s: %w", jobID, store.ErrNotFound)
	}
	return rec, nil
}

// ListJobs returns jobs newest first.
func (s *JobStore) ListJobs(_ context.Context, status *crawler.JobStatus, limit, offset int) ([]store.JobRecord, error) {
	s.mu.RLock()
	out := make([]store.JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		if status != nil && rec.Status != *status {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return paginate(out, limit, offset), nil
}

// ListPages returns copies of the pages recorded for a job in crawl order.
func (s *JobStore) ListPages(_ context.Context, jobID string, limit, offset int) ([]crawler.CrawledPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, fmt.Errorf("list pages %s: %w", jobID, store.ErrNotFound)
	}
	set := s.pages[jobID]
	if set == nil {
		return []crawler.CrawledPage{}, nil
	}
	out := make([]crawler.CrawledPage, 0, len(set.order))
	for _, u := range set.order {
		out = append(out, set.byURL[u])
	}
	return paginate(out, limit, offset), nil
}

func (s *JobStore) update(jobID string, fn func(*store.JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: %w", jobID, store.ErrNotFound)
	}
	fn(&rec)
	s.jobs[jobID] = rec
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
