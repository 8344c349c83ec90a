// Package server builds the crawl service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/api"
	"github.com/JakeFAU/seo-crawler/internal/clock"
	"github.com/JakeFAU/seo-crawler/internal/config"
	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/dispatcher"
	"github.com/JakeFAU/seo-crawler/internal/id/uuid"
	"github.com/JakeFAU/seo-crawler/internal/progress"
	queueMemory "github.com/JakeFAU/seo-crawler/internal/queue/memory"
	"github.com/JakeFAU/seo-crawler/internal/worker"
)

// App contains the service's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	hub       *progress.Hub
	infra     *infra
	release   func()
}

// Build creates the service's dependencies. On error everything already
// opened is closed again.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (app *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Int("workers", cfg.Crawler.Workers),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	in := &infra{logger: logger}
	defer func() {
		if err != nil {
			_ = in.close(context.Background())
		}
	}()

	archive, err := in.setupStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo, err := in.setupRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sinkList, live, err := in.setupProgressSinks(ctx, cfg, repo)
	if err != nil {
		return nil, err
	}

	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.MaxBatchWait,
		SinkTimeout:    cfg.Progress.SinkTimeout,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         logger.Named("progress_hub"),
	}, sinkList...)
	in.hub = hub
	logger.Info("progress hub initialized", zap.Int("sinks", len(sinkList)))

	clk := clock.System{}
	engine, release, err := BuildEngine(cfg, EngineDeps{
		Archive: archive,
		Sinks:   []crawler.EventSink{hub},
		Clock:   clk,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	q := queueMemory.NewQueue(cfg.Crawler.QueueDepth)
	registry := worker.NewRegistry()
	workers := make([]*worker.Worker, 0, cfg.Crawler.Workers)
	for i := range cfg.Crawler.Workers {
		workers = append(workers, worker.New(q, engine, repo, registry, worker.Options{
			Clock:  clk,
			Logger: logger.Named("worker").With(zap.Int("index", i)),
		}))
	}
	dispatch := dispatcher.New(q, repo, registry, workers, dispatcher.Options{
		IDs:    uuid.New(),
		Clock:  clk,
		Logger: logger.Named("dispatcher"),
	})

	opts := api.Options{Ready: in.pingers, Logger: logger.Named("api")}
	if live != nil {
		opts.Live = live
	}
	return &App{
		cfg:       cfg,
		logger:    logger,
		apiServer: api.NewServer(dispatch, repo, cfg, opts),
		dispatch:  dispatch,
		hub:       hub,
		infra:     in,
		release:   release,
	}, nil
}

// Handler exposes the HTTP API, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves the API and runs workers until ctx is canceled, then drains.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	workersDone := make(chan error, 1)
	go func() {
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Crawler.Workers))
		workersDone <- a.dispatch.Run(workCtx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	// Running crawls are canceled and resolve with partial results. Jobs
	// still waiting in the queue are not started.
	a.dispatch.Close()
	cancelWork()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not stop before the shutdown deadline")
	}

	closeErr := a.Close(shutdownCtx)
	select {
	case err := <-serveErr:
		return errors.Join(err, closeErr)
	default:
		return closeErr
	}
}

// Close releases the browser, flushes the progress hub and closes clients.
func (a *App) Close(ctx context.Context) error {
	a.release()
	err := a.infra.close(ctx)
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
