package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/config"
	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/seo-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/seo-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/seo-crawler/internal/hash/sha256"
	"github.com/JakeFAU/seo-crawler/internal/headless/detector"
	"github.com/JakeFAU/seo-crawler/internal/id/uuid"
	"github.com/JakeFAU/seo-crawler/internal/policy/robots"
	"github.com/JakeFAU/seo-crawler/internal/sitemap"
)

// EngineDeps are the per-process collaborators handed to the engine.
type EngineDeps struct {
	Archive crawler.BlobStore
	Sinks   []crawler.EventSink
	Clock   crawler.Clock
	Logger  *zap.Logger
}

// BuildEngine assembles the crawl engine from config: the colly HTTP
// fetcher, the optional chromedp renderer behind the render router, the
// robots cache and the sitemap reader. The returned func releases the
// browser allocator.
func BuildEngine(cfg config.Config, deps EngineDeps) (*crawler.Engine, func(), error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.Crawler.Timeout,
		MaxBodySize: cfg.Crawler.MaxBodyBytes,
	})
	logger.Info("using colly http fetcher", zap.String("user_agent", cfg.Crawler.UserAgent))

	release := func() {}
	var renderer crawler.Fetcher
	if cfg.Headless.Enabled {
		chrome, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Headless.NavigationTimeout,
			SettleDelay:       cfg.Headless.SettleDelay,
			ExecPath:          cfg.Headless.ExecPath,
			NoSandbox:         cfg.Headless.NoSandbox,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		renderer = chrome
		release = chrome.Close
		logger.Info("using headless renderer", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	}

	router, err := fetcher.NewRouter(
		httpFetcher,
		renderer,
		detector.NewHeuristic(cfg.Headless.MinTextLength),
		logger.Named("fetcher"),
	)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("fetch router init failed: %w", err)
	}

	engine, err := crawler.NewEngine(crawler.EngineConfig{
		Fetcher: router,
		Robots: robots.New(robots.Config{
			TTL:    cfg.Crawler.RobotsTTL,
			Logger: logger.Named("robots"),
		}),
		Sitemaps:     sitemap.New(sitemap.Config{Logger: logger.Named("sitemap")}),
		Archive:      deps.Archive,
		Hasher:       sha256.New(),
		Clock:        deps.Clock,
		IDs:          uuid.New(),
		Logger:       logger.Named("engine"),
		Sinks:        deps.Sinks,
		DefaultDelay: cfg.Crawler.DefaultDelay,
	})
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("engine init failed: %w", err)
	}
	return engine, release, nil
}
