package crawler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Job defaults.
const (
	DefaultMaxDepth     = 3
	DefaultMaxPages     = 100
	DefaultTimeout      = 30 * time.Second
	DefaultRetries      = 3
	DefaultCrawlDelay   = time.Second
	DefaultConcurrency  = 5
	DefaultMaxHTMLBytes = 100_000
	DefaultUserAgent    = "SEOCrawler/1.0 (+https://github.com/JakeFAU/seo-crawler)"
)

// DefaultJob returns a job carrying every default. Callers that decode jobs
// from user input start from this value so omitted fields keep their default.
func DefaultJob() CrawlJob {
	respect := true
	return CrawlJob{
		MaxDepth:      DefaultMaxDepth,
		MaxPages:      DefaultMaxPages,
		UserAgent:     DefaultUserAgent,
		RespectRobots: &respect,
		CrawlDelay:    DefaultCrawlDelay,
		Timeout:       DefaultTimeout,
		Retries:       DefaultRetries,
		Concurrency:   DefaultConcurrency,
		RenderMode:    RenderNever,
		MaxHTMLBytes:  DefaultMaxHTMLBytes,
	}
}

// WithDefaults fills zero-valued fields whose zero value is not meaningful.
// MaxDepth and CrawlDelay are left alone: zero is a legal depth, and a zero
// delay defers to the robots policy and the engine default. MaxPages is left
// alone too, so an explicit zero budget fails Validate instead of silently
// becoming DefaultMaxPages; start from DefaultJob to get the default budget.
func (j CrawlJob) WithDefaults() CrawlJob {
	if j.UserAgent == "" {
		j.UserAgent = DefaultUserAgent
	}
	if j.RespectRobots == nil {
		respect := true
		j.RespectRobots = &respect
	}
	if j.Timeout <= 0 {
		j.Timeout = DefaultTimeout
	}
	if j.Retries <= 0 {
		j.Retries = DefaultRetries
	}
	if j.Concurrency <= 0 {
		j.Concurrency = DefaultConcurrency
	}
	if j.RenderMode == "" {
		j.RenderMode = RenderNever
	}
	if j.MaxHTMLBytes <= 0 {
		j.MaxHTMLBytes = DefaultMaxHTMLBytes
	}
	return j
}

// Validate rejects jobs that cannot start. It performs no network activity.
func (j CrawlJob) Validate() error {
	if len(j.URLs) == 0 {
		return fmt.Errorf("%w: at least one url is required", ErrInvalidJob)
	}
	for _, raw := range j.URLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%w: url %q: %w", ErrInvalidJob, raw, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url %q must be absolute http(s)", ErrInvalidJob, raw)
		}
	}
	if j.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth must be >= 0", ErrInvalidJob)
	}
	if j.MaxPages < 1 {
		return fmt.Errorf("%w: max pages must be >= 1", ErrInvalidJob)
	}
	if j.CrawlDelay < 0 {
		return fmt.Errorf("%w: crawl delay must be >= 0", ErrInvalidJob)
	}
	switch j.RenderMode {
	case "", RenderNever, RenderAuto, RenderAlways:
	default:
		return fmt.Errorf("%w: unknown render mode %q", ErrInvalidJob, j.RenderMode)
	}
	return nil
}

// RespectsRobots reports whether robots.txt rules apply. Nil means true.
func (j CrawlJob) RespectsRobots() bool {
	return j.RespectRobots == nil || *j.RespectRobots
}

func (j CrawlJob) httpHeaders() http.Header {
	h := make(http.Header, len(j.Headers))
	for k, v := range j.Headers {
		h.Set(k, v)
	}
	return h
}
