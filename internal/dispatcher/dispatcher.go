// Package dispatcher accepts crawl submissions and fans queued work out to a
// pool of workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/seo-crawler/internal/canon"
	"github.com/JakeFAU/seo-crawler/internal/clock"
	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/queue"
	"github.com/JakeFAU/seo-crawler/internal/store"
	"github.com/JakeFAU/seo-crawler/internal/worker"
)

// ErrJobTerminal is returned when canceling a job that already finished.
var ErrJobTerminal = errors.New("job already finished")

// Options carries the optional collaborators of a Dispatcher.
type Options struct {
	IDs    crawler.IDGenerator
	Clock  crawler.Clock
	Logger *zap.Logger
}

// Dispatcher owns job submission, cancellation and the worker pool.
type Dispatcher struct {
	queue    queue.Queue
	repo     store.Repository
	registry *worker.Registry
	workers  []*worker.Worker
	ids      crawler.IDGenerator
	clock    crawler.Clock
	logger   *zap.Logger
}

// New creates a Dispatcher. The registry must be the one shared with workers.
func New(
	q queue.Queue,
	repo store.Repository,
	registry *worker.Registry,
	workers []*worker.Worker,
	opts Options,
) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    q,
		repo:     repo,
		registry: registry,
		workers:  workers,
		ids:      opts.IDs,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
}

// Run starts all workers and blocks until they return, which happens when
// ctx ends or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	return nil
}

// Submit validates job, records it as queued and hands it to the queue.
// Validation failures wrap crawler.ErrInvalidJob.
func (d *Dispatcher) Submit(ctx context.Context, job crawler.CrawlJob) (store.JobRecord, error) {
	job = job.WithDefaults()
	if err := job.Validate(); err != nil {
		return store.JobRecord{}, err
	}
	if _, err := canon.NewScope(job.AllowedDomains, job.IncludePatterns, job.ExcludePatterns); err != nil {
		return store.JobRecord{}, fmt.Errorf("%w: %w", crawler.ErrInvalidJob, err)
	}
	if job.ID == "" {
		id, err := d.newID()
		if err != nil {
			return store.JobRecord{}, err
		}
		job.ID = id
	}

	now := d.clock.Now()
	if err := d.repo.CreateJob(ctx, job, now); err != nil {
		return store.JobRecord{}, fmt.Errorf("create job: %w", err)
	}
	if err := d.queue.Enqueue(ctx, queue.Item{Job: job, EnqueuedAt: now}); err != nil {
		d.logger.Error("enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		failErr := d.repo.CompleteJob(context.WithoutCancel(ctx), crawler.CrawlResult{
			JobID:      job.ID,
			Status:     crawler.JobStatusFailed,
			Err:        "job could not be queued",
			FinishedAt: d.clock.Now(),
		})
		return store.JobRecord{}, errors.Join(fmt.Errorf("enqueue job: %w", err), failErr)
	}
	d.logger.Info("job queued", zap.String("job_id", job.ID), zap.Strings("seeds", job.URLs))

	rec, err := d.repo.GetJob(ctx, job.ID)
	if err != nil {
		return store.JobRecord{}, fmt.Errorf("load job: %w", err)
	}
	return rec, nil
}

// Cancel stops a queued or running job. Unknown jobs wrap store.ErrNotFound
// and finished jobs return ErrJobTerminal.
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) (store.JobRecord, error) {
	rec, err := d.repo.GetJob(ctx, jobID)
	if err != nil {
		return store.JobRecord{}, err
	}
	if rec.Terminal() {
		return rec, ErrJobTerminal
	}

	if d.registry.Cancel(jobID) {
		d.logger.Info("cancel requested for running job", zap.String("job_id", jobID))
		return rec, nil
	}

	// Not running here yet: record the cancellation now; the worker drops the
	// job when it reaches the front of the queue.
	if err := d.repo.CompleteJob(ctx, crawler.CrawlResult{
		JobID:      jobID,
		Status:     crawler.JobStatusCanceled,
		Err:        context.Canceled.Error(),
		FinishedAt: d.clock.Now(),
	}); err != nil {
		d.registry.Forget(jobID)
		return store.JobRecord{}, fmt.Errorf("cancel job: %w", err)
	}
	rec, err = d.repo.GetJob(ctx, jobID)
	if err != nil {
		return store.JobRecord{}, err
	}
	if rec.Status != crawler.JobStatusCanceled {
		// The run finished between the status check and the registry lookup,
		// and its outcome was kept.
		d.registry.Forget(jobID)
		return rec, ErrJobTerminal
	}
	d.logger.Info("queued job canceled", zap.String("job_id", jobID))
	return rec, nil
}

// Close stops accepting submissions. Queued jobs still drain through Run.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

func (d *Dispatcher) newID() (string, error) {
	if d.ids == nil {
		return fmt.Sprintf("job-%d", d.clock.Now().UnixNano()), nil
	}
	id, err := d.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	return id, nil
}
