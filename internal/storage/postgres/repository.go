// Package postgres provides the Postgres-backed store.Repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

var _ store.Repository = (*Repository)(nil)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Repository implements store.Repository on top of a pgx pool.
type Repository struct {
	pool dbPool
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// NewWithPool constructs a repository from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Repository{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Ping checks connectivity; readiness probes use it.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Migrate applies Schema.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateJob inserts a queued job.
func (r *Repository) CreateJob(ctx context.Context, job crawler.CrawlJob, submittedAt time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	const query = `
		INSERT INTO crawl_jobs (id, job, status, submitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING;
	`
	tag, err := r.pool.Exec(ctx, query, job.ID, payload, string(crawler.JobStatusQueued), submittedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create job %s: %w", job.ID, store.ErrExists)
	}
	return nil
}

// MarkJobRunning moves the job to running unless it already finished.
func (r *Repository) MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	const query = `
		UPDATE crawl_jobs
		SET status = CASE WHEN status IN ('succeeded', 'failed', 'canceled') THEN status ELSE $2 END,
			started_at = COALESCE(started_at, $3)
		WHERE id = $1;
	`
	return r.execOne(ctx, "mark job running", jobID, query, jobID, string(crawler.JobStatusRunning), startedAt)
}

// UpsertPage stores page keyed by (job, URL) and counts it once per URL.
func (r *Repository) UpsertPage(ctx context.Context, jobID string, page crawler.CrawledPage) error {
	payload, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	const query = `
		WITH up AS (
			INSERT INTO crawl_pages (job_id, url, status_code, crawled_at, page)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (job_id, url) DO UPDATE
			SET status_code = EXCLUDED.status_code,
				crawled_at = EXCLUDED.crawled_at,
				page = EXCLUDED.page
			RETURNING (xmax = 0) AS inserted
		)
		UPDATE crawl_jobs
		SET pages = pages + (SELECT count(*) FROM up WHERE inserted)
		WHERE id = $1;
	`
	return r.execOne(ctx, "upsert page", jobID, query, jobID, page.URL, page.StatusCode, page.CrawledAt, payload)
}

// IncrementErrors bumps the job's error counter while the job is live.
func (r *Repository) IncrementErrors(ctx context.Context, jobID string, _ crawler.CrawlError) error {
	const query = `
		UPDATE crawl_jobs
		SET errors = errors + CASE WHEN status IN ('succeeded', 'failed', 'canceled') THEN 0 ELSE 1 END
		WHERE id = $1;
	`
	return r.execOne(ctx, "increment errors", jobID, query, jobID)
}

// CompleteJob stores the final status and summary of result. A job that
// already finished keeps its first outcome; only a missing job is an error.
func (r *Repository) CompleteJob(ctx context.Context, result crawler.CrawlResult) error {
	var stats []byte
	if result.Stats != nil {
		var err error
		if stats, err = json.Marshal(result.Stats); err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
	}
	var startedAt *time.Time
	if !result.StartedAt.IsZero() {
		startedAt = &result.StartedAt
	}
	finishedAt := result.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}
	const query = `
		WITH done AS (
			UPDATE crawl_jobs
			SET status = $2,
				finished_at = $3,
				started_at = COALESCE(started_at, $4),
				completed = $5,
				error_text = $6,
				errors = $7,
				stats = $8
			WHERE id = $1 AND status NOT IN ('succeeded', 'failed', 'canceled')
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM crawl_jobs WHERE id = $1);
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query,
		result.JobID,
		string(result.Status),
		finishedAt,
		startedAt,
		result.Completed,
		result.Err,
		len(result.Errors),
		stats,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !exists {
		return fmt.Errorf("complete job %s: %w", result.JobID, store.ErrNotFound)
	}
	return nil
}

const jobColumns = `id, job, status, submitted_at, started_at, finished_at, pages, errors, completed, error_text, stats`

// GetJob loads a single job or returns store.ErrNotFound.
func (r *Repository) GetJob(ctx context.Context, jobID string) (store.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs WHERE id = $1;`
	rec, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.JobRecord{}, fmt.Errorf("get job %s: %w", jobID, store.ErrNotFound)
		}
		return store.JobRecord{}, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (r *Repository) ListJobs(
	ctx context.Context,
	status *crawler.JobStatus,
	limit,
	offset int,
) ([]store.JobRecord, error) {
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}
	query := `SELECT ` + jobColumns + `
		FROM crawl_jobs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY submitted_at DESC, id
		LIMIT $2 OFFSET $3;`
	rows, err := r.pool.Query(ctx, query, filter, limitOrAll(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []store.JobRecord{}
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// ListPages returns a job's pages in crawl order.
func (r *Repository) ListPages(ctx context.Context, jobID string, limit, offset int) ([]crawler.CrawledPage, error) {
	if _, err := r.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	const query = `
		SELECT page FROM crawl_pages
		WHERE job_id = $1
		ORDER BY seq
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.pool.Query(ctx, query, jobID, limitOrAll(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	out := []crawler.CrawledPage{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		var page crawler.CrawledPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		out = append(out, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}

func (r *Repository) execOne(ctx context.Context, op, jobID, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", op, jobID, store.ErrNotFound)
	}
	return nil
}

func scanJob(row pgx.Row) (store.JobRecord, error) {
	var (
		rec    store.JobRecord
		job    []byte
		stats  []byte
		status string
	)
	if err := row.Scan(
		&rec.ID,
		&job,
		&status,
		&rec.SubmittedAt,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.Pages,
		&rec.Errors,
		&rec.Completed,
		&rec.ErrorText,
		&stats,
	); err != nil {
		return store.JobRecord{}, err
	}
	rec.Status = crawler.JobStatus(status)
	if err := json.Unmarshal(job, &rec.Job); err != nil {
		return store.JobRecord{}, fmt.Errorf("decode job: %w", err)
	}
	if len(stats) > 0 {
		rec.Stats = &crawler.CrawlStats{}
		if err := json.Unmarshal(stats, rec.Stats); err != nil {
			return store.JobRecord{}, fmt.Errorf("decode stats: %w", err)
		}
	}
	return rec, nil
}

// limitOrAll maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
