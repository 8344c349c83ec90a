// Package worker implements the crawl execution loop behind the job queue.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/clock"
	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/queue"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

const saveTimeout = 5 * time.Second

// Starter launches crawl jobs. *crawler.Engine satisfies it.
type Starter interface {
	Start(ctx context.Context, job crawler.CrawlJob, sinks ...crawler.EventSink) (*crawler.Run, error)
}

// Worker consumes queue items and runs each job to completion.
type Worker struct {
	queue    queue.Queue
	engine   Starter
	repo     store.Repository
	registry *Registry
	clock    crawler.Clock
	sinks    []crawler.EventSink
	logger   *zap.Logger
}

// Options carries the optional collaborators of a Worker.
type Options struct {
	Clock crawler.Clock
	// Sinks receive the events of every job this worker runs, in addition
	// to the engine's own sinks.
	Sinks  []crawler.EventSink
	Logger *zap.Logger
}

// New constructs a Worker.
func New(q queue.Queue, engine Starter, repo store.Repository, registry *Registry, opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Worker{
		queue:    q,
		engine:   engine,
		repo:     repo,
		registry: registry,
		clock:    opts.Clock,
		sinks:    opts.Sinks,
		logger:   opts.Logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job",
			zap.String("job_id", item.Job.ID),
			zap.Duration("queued_for", w.clock.Now().Sub(item.EnqueuedAt)),
		)
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item queue.Item) {
	jobID := item.Job.ID
	if w.registry.takePending(jobID) {
		w.logger.Info("skipping job canceled while queued", zap.String("job_id", jobID))
		w.finish(ctx, crawler.CrawlResult{JobID: jobID, Status: crawler.JobStatusCanceled})
		return
	}

	run, err := w.engine.Start(ctx, item.Job, w.sinks...)
	if err != nil {
		w.logger.Error("crawl start failed", zap.String("job_id", jobID), zap.Error(err))
		w.finish(ctx, crawler.CrawlResult{JobID: jobID, Status: crawler.JobStatusFailed, Err: err.Error()})
		return
	}
	w.registry.track(run)
	defer w.registry.untrack(jobID)

	// The run's context derives from ctx, so shutdown cancels it and Done
	// still closes once the partial result is built.
	<-run.Done()
	result, _ := run.Wait(context.Background())
	if result.JobID == "" {
		result.JobID = jobID
	}
	// The outcome is stored before the run leaves the registry, so a cancel
	// that misses the run always finds the job terminal.
	w.save(ctx, result)
	w.logger.Info("crawl finished",
		zap.String("job_id", jobID),
		zap.String("status", string(result.Status)),
		zap.Int("pages", len(result.Pages)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)
}

// finish records a terminal state for a job that never produced events.
func (w *Worker) finish(ctx context.Context, result crawler.CrawlResult) {
	result.FinishedAt = w.clock.Now()
	w.save(ctx, result)
}

// save writes the job outcome, even while shutting down. Progress events for
// the same run may still be in flight; the repository ignores them once the
// job is terminal.
func (w *Worker) save(ctx context.Context, result crawler.CrawlResult) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := store.SaveResult(writeCtx, w.repo, result); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", result.JobID), zap.Error(err))
	}
}
