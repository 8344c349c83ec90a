package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

var (
	// ErrNotFound signals that the requested job does not exist.
	ErrNotFound = errors.New("crawl job not found")
	// ErrExists is returned when a job ID is submitted twice.
	ErrExists = errors.New("crawl job already exists")
)

// JobRecord is the persisted view of a crawl job.
type JobRecord struct {
	ID          string
	Job         crawler.CrawlJob
	Status      crawler.JobStatus
	SubmittedAt time.Time
	// StartedAt is nil until the job emits crawl-started.
	StartedAt *time.Time
	// FinishedAt is nil until the job emits crawl-finished.
	FinishedAt *time.Time
	Pages      int
	Errors     int
	Completed  bool
	ErrorText  string
	Stats      *crawler.CrawlStats
}

// Terminal reports whether the job has reached a final status.
func (r JobRecord) Terminal() bool {
	return IsTerminal(r.Status)
}

// IsTerminal reports whether status is final.
func IsTerminal(status crawler.JobStatus) bool {
	switch status {
	case crawler.JobStatusSucceeded, crawler.JobStatusFailed, crawler.JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Repository persists crawl jobs, their pages and their outcome.
type Repository interface {
	// CreateJob records a queued job. Duplicate IDs return ErrExists.
	CreateJob(ctx context.Context, job crawler.CrawlJob, submittedAt time.Time) error
	// MarkJobRunning moves a job to running and stamps its start time.
	MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) error
	// UpsertPage stores page keyed by (job, URL); a repeated URL replaces the row.
	UpsertPage(ctx context.Context, jobID string, page crawler.CrawledPage) error
	// IncrementErrors bumps the job's error counter unless the job finished.
	IncrementErrors(ctx context.Context, jobID string, crawlErr crawler.CrawlError) error
	// CompleteJob stores the final status and summary of result. The first
	// terminal status wins; completing a finished job is a no-op.
	CompleteJob(ctx context.Context, result crawler.CrawlResult) error

	// GetJob loads one job or returns ErrNotFound.
	GetJob(ctx context.Context, jobID string) (JobRecord, error)
	// ListJobs returns jobs newest first, optionally filtered by status.
	ListJobs(ctx context.Context, status *crawler.JobStatus, limit, offset int) ([]JobRecord, error)
	// ListPages returns a job's pages in crawl order.
	ListPages(ctx context.Context, jobID string, limit, offset int) ([]crawler.CrawledPage, error)
}

// SaveResult persists result: pages missing from the store are upserted
// before the terminal status is written, so a finished job always lists every
// page the crawl produced. Jobs that already reached a terminal status are
// left untouched.
func SaveResult(ctx context.Context, repo Repository, result crawler.CrawlResult) error {
	rec, err := repo.GetJob(ctx, result.JobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if rec.Terminal() {
		return nil
	}
	if rec.Pages < len(result.Pages) {
		for _, page := range result.Pages {
			if err := repo.UpsertPage(ctx, result.JobID, page); err != nil {
				return fmt.Errorf("upsert page %s: %w", page.URL, err)
			}
		}
	}
	if err := repo.CompleteJob(ctx, result); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}
