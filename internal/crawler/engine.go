package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/canon"
	"github.com/JakeFAU/seo-crawler/internal/metrics"
	"github.com/JakeFAU/seo-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/seo-crawler/internal/policy/robots"
)

const (
	// DefaultBatchPause is the pause between batches.
	DefaultBatchPause = 50 * time.Millisecond

	genericLoopError = "crawl aborted by an internal error"
)

// EngineConfig wires the engine's collaborators. Only Fetcher is required.
type EngineConfig struct {
	Fetcher  Fetcher
	Robots   RobotsPolicy
	Sitemaps SitemapReader
	Archive  BlobStore
	Hasher   Hasher
	Clock    Clock
	IDs      IDGenerator
	Logger   *zap.Logger
	// Sinks receive the events of every job started by the engine.
	Sinks []EventSink
	// DefaultDelay is the minimum spacing between requests to one origin.
	DefaultDelay time.Duration
	// BatchPause separates batches; zero picks DefaultBatchPause and a
	// negative value disables it.
	BatchPause time.Duration
	// Backoff replaces ExponentialBackoff between retry attempts.
	Backoff func(attempt int) time.Duration
	// NewLimiter builds the per-job origin limiter.
	NewLimiter func() OriginLimiter
}

// Engine runs crawl jobs. It is safe for concurrent use; each job gets its
// own frontier, governor and limiter.
type Engine struct {
	cfg EngineConfig
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewEngine validates cfg and fills in defaults.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("crawler: fetcher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Robots == nil {
		cfg.Robots = robots.New(robots.Config{Logger: cfg.Logger})
	}
	if cfg.BatchPause == 0 {
		cfg.BatchPause = DefaultBatchPause
	}
	if cfg.NewLimiter == nil {
		cfg.NewLimiter = func() OriginLimiter { return ratelimit.New() }
	}
	return &Engine{cfg: cfg}, nil
}

// Start validates job and launches it. Validation errors wrap ErrInvalidJob
// and are returned before any network activity.
func (e *Engine) Start(ctx context.Context, job CrawlJob, sinks ...EventSink) (*Run, error) {
	job = job.WithDefaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if job.ID == "" {
		id, err := e.newID()
		if err != nil {
			return nil, err
		}
		job.ID = id
	}
	scope, err := canon.NewScope(job.AllowedDomains, job.IncludePatterns, job.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	job.URLs = append([]string(nil), job.URLs...)

	jobCtx, cancel := context.WithCancel(ctx)
	run := newRun(job.ID, cancel)
	allSinks := make([]EventSink, 0, len(e.cfg.Sinks)+len(sinks))
	allSinks = append(allSinks, e.cfg.Sinks...)
	allSinks = append(allSinks, sinks...)

	j := &jobRun{
		engine: e,
		job:    job,
		scope:  scope,
		bases:  make(map[string]*url.URL),
		front:  newFrontier(),
		logger: e.cfg.Logger.With(zap.String("job_id", job.ID)),
		emitter: &emitter{
			jobID:  job.ID,
			clock:  e.cfg.Clock,
			sinks:  allSinks,
			run:    run,
			logger: e.cfg.Logger,
		},
	}
	j.exec = e.newExecutor(job, j.logger)

	go func() {
		defer cancel()
		j.execute(jobCtx, run)
	}()
	return run, nil
}

// Crawl starts job and waits for its result.
func (e *Engine) Crawl(ctx context.Context, job CrawlJob, sinks ...EventSink) (CrawlResult, error) {
	run, err := e.Start(ctx, job, sinks...)
	if err != nil {
		return CrawlResult{}, err
	}
	<-run.Done()
	return run.result, nil
}

func (e *Engine) newID() (string, error) {
	if e.cfg.IDs == nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano()), nil
	}
	id, err := e.cfg.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	return id, nil
}

func (e *Engine) newExecutor(job CrawlJob, logger *zap.Logger) *executor {
	retry := NewRetryPolicy(job.Retries)
	if e.cfg.Backoff != nil {
		retry.Backoff = e.cfg.Backoff
	}
	return &executor{
		job:          job,
		fetcher:      e.cfg.Fetcher,
		robots:       e.cfg.Robots,
		limiter:      e.cfg.NewLimiter(),
		governor:     NewGovernor(job.Concurrency),
		retry:        retry,
		archive:      e.cfg.Archive,
		hasher:       e.cfg.Hasher,
		defaultDelay: e.cfg.DefaultDelay,
		logger:       logger,
	}
}

// jobRun is the coordinator's state for one job. Only the coordinating
// goroutine touches it.
type jobRun struct {
	engine  *Engine
	job     CrawlJob
	scope   *canon.Scope
	bases   map[string]*url.URL
	front   *frontier
	exec    *executor
	emitter *emitter
	logger  *zap.Logger

	pages        []CrawledPage
	errs         []CrawlError
	currentDepth int
	startedAt    time.Time
}

func (j *jobRun) execute(ctx context.Context, run *Run) {
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	j.startedAt = j.engine.cfg.Clock.Now()
	j.logger.Info("crawl started", zap.Strings("seeds", j.job.URLs), zap.Int("max_pages", j.job.MaxPages))

	loopErr := j.guardedLoop(ctx)
	if loopErr != nil {
		j.logger.Error("crawl loop failed", zap.Error(loopErr))
		j.emitter.emit(Event{Type: EventCrawlError, Error: &CrawlError{
			URL:       j.job.URLs[0],
			Message:   genericLoopError,
			Timestamp: j.engine.cfg.Clock.Now(),
		}})
	}

	result := j.result(ctx, loopErr)
	metrics.ObserveJob(string(result.Status))
	j.logger.Info("crawl finished",
		zap.String("status", string(result.Status)),
		zap.Int("pages", len(result.Pages)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)
	run.result = result
	j.emitter.emit(Event{Type: EventCrawlFinished, Result: &result})
	run.closeEvents()
	close(run.done)
}

// guardedLoop converts a panic escaping the loop into an error so the job
// still resolves with what it accumulated.
func (j *jobRun) guardedLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl loop panic: %v", r)
		}
	}()
	j.emitter.emit(Event{Type: EventCrawlStarted})
	j.seed(ctx)
	j.loop(ctx)
	return nil
}

func (j *jobRun) seed(ctx context.Context) {
	for _, raw := range j.job.URLs {
		normalized, err := canon.Normalize(raw)
		if err != nil {
			continue
		}
		u, err := url.Parse(normalized)
		if err != nil {
			continue
		}
		origin := canon.Origin(u)
		if _, ok := j.bases[origin]; !ok {
			j.bases[origin] = u
		}
		j.front.enqueue(normalized, 0)
	}
	if j.job.SeedFromSitemaps && j.job.RespectsRobots() && j.engine.cfg.Sitemaps != nil {
		j.seedSitemaps(ctx)
	}
}

func (j *jobRun) seedSitemaps(ctx context.Context) {
	seen := make(map[string]struct{})
	for _, base := range j.bases {
		for _, sitemapURL := range j.engine.cfg.Robots.Sitemaps(ctx, base.String(), j.job.UserAgent) {
			if _, ok := seen[sitemapURL]; ok {
				continue
			}
			seen[sitemapURL] = struct{}{}
			locs, err := j.engine.cfg.Sitemaps.Read(ctx, sitemapURL, j.job.UserAgent)
			if err != nil {
				j.logger.Warn("read sitemap", zap.String("sitemap", sitemapURL), zap.Error(err))
				continue
			}
			added := 0
			for _, loc := range locs {
				if j.front.pendingLen() >= j.job.MaxPages {
					return
				}
				if j.admit(loc) {
					added++
				}
			}
			j.logger.Debug("seeded from sitemap", zap.String("sitemap", sitemapURL), zap.Int("added", added))
		}
	}
}

func (j *jobRun) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if j.currentDepth > j.job.MaxDepth || j.front.processedLen() >= j.job.MaxPages || j.front.pendingLen() == 0 {
			return
		}
		n := min(j.job.Concurrency, j.front.pendingLen(), j.job.MaxPages-j.front.processedLen())
		batch := j.front.take(n)
		for _, t := range batch {
			j.currentDepth = max(j.currentDepth, t.depth)
		}

		outcomes := make(chan outcome, len(batch))
		for _, t := range batch {
			go func(t task) {
				outcomes <- j.exec.run(ctx, t)
			}(t)
		}
		for range batch {
			j.apply(<-outcomes)
		}

		progress := j.progress()
		j.emitter.emit(Event{Type: EventCrawlProgress, Progress: &progress})

		if j.engine.cfg.BatchPause > 0 && j.front.pendingLen() > 0 {
			if err := sleep(ctx, j.engine.cfg.BatchPause); err != nil {
				return
			}
		}
	}
}

func (j *jobRun) apply(o outcome) {
	now := j.engine.cfg.Clock.Now()
	switch {
	case o.page != nil:
		page := *o.page
		page.CrawledAt = now
		j.pages = append(j.pages, page)
		metrics.ObservePage(page.URL, statusClass(page.StatusCode), page.Size)
		j.emitter.emit(Event{Type: EventPageCrawled, Page: &page})
		if o.task.depth < j.job.MaxDepth {
			for _, link := range o.links {
				j.admit(link)
			}
		}
	case o.err != nil:
		crawlErr := *o.err
		crawlErr.Timestamp = now
		j.errs = append(j.errs, crawlErr)
		metrics.ObserveFetchError(crawlErr.URL, errorReason(crawlErr))
		j.logger.Debug("page failed", zap.String("url", crawlErr.URL), zap.String("error", crawlErr.Message))
		j.emitter.emit(Event{Type: EventCrawlError, Error: &crawlErr})
	}
}

// admit enqueues a discovered URL if it is crawlable, in scope, within the
// depth bound and not yet seen.
func (j *jobRun) admit(raw string) bool {
	normalized, err := canon.Normalize(raw)
	if err != nil || !canon.IsCrawlable(normalized) || !j.scope.Allows(normalized) {
		return false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	depth := canon.PathDepth(u, j.bases[canon.Origin(u)])
	if depth > j.job.MaxDepth {
		return false
	}
	return j.front.enqueue(normalized, depth)
}

func (j *jobRun) progress() CrawlProgress {
	processed := j.front.processedLen()
	pending := j.front.pendingLen()
	elapsed := j.engine.cfg.Clock.Now().Sub(j.startedAt)
	return CrawlProgress{
		Total:        processed + pending,
		Processed:    processed,
		Pending:      pending,
		Errors:       len(j.errs),
		CurrentDepth: j.currentDepth,
		StartedAt:    j.startedAt,
		ETA:          estimateRemaining(elapsed, processed, j.job.MaxPages),
	}
}

func (j *jobRun) result(ctx context.Context, loopErr error) CrawlResult {
	finished := j.engine.cfg.Clock.Now()
	result := CrawlResult{
		JobID:      j.job.ID,
		Pages:      append([]CrawledPage{}, j.pages...),
		Errors:     append([]CrawlError{}, j.errs...),
		Progress:   j.progress(),
		StartedAt:  j.startedAt,
		FinishedAt: finished,
		Duration:   finished.Sub(j.startedAt),
		Stats:      computeStats(j.pages, j.errs),
	}
	switch {
	case loopErr != nil:
		result.Status = JobStatusFailed
		result.Err = loopErr.Error()
	case ctx.Err() != nil:
		result.Status = JobStatusCanceled
		result.Err = ctx.Err().Error()
	default:
		result.Status = JobStatusSucceeded
		result.Completed = true
	}
	return result
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return fmt.Sprintf("%dxx", code/100)
}

func errorReason(e CrawlError) string {
	switch {
	case e.Message == ErrBlockedByRobots.Error():
		return "robots"
	case e.StatusCode != 0:
		return statusClass(e.StatusCode)
	default:
		return "network"
	}
}
