package crawler

import (
	"net/http"
	"time"

	"github.com/JakeFAU/seo-crawler/internal/seo"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// RenderMode selects how pages are fetched.
type RenderMode string

// Render modes.
const (
	// RenderNever fetches over plain HTTP only.
	RenderNever RenderMode = "never"
	// RenderAuto fetches over HTTP and promotes SPA shells to the browser.
	RenderAuto RenderMode = "auto"
	// RenderAlways renders every page in the browser.
	RenderAlways RenderMode = "always"
)

// CrawlJob is the immutable description of one crawl.
type CrawlJob struct {
	ID               string            `json:"id"`
	URLs             []string          `json:"urls"`
	MaxDepth         int               `json:"maxDepth"`
	MaxPages         int               `json:"maxPages"`
	UserAgent        string            `json:"userAgent,omitempty"`
	RespectRobots    *bool             `json:"respectRobotsTxt,omitempty"`
	CrawlDelay       time.Duration     `json:"crawlDelay,omitempty"`
	Timeout          time.Duration     `json:"timeout,omitempty"`
	Retries          int               `json:"retries,omitempty"`
	Concurrency      int               `json:"concurrency,omitempty"`
	AllowedDomains   []string          `json:"allowedDomains,omitempty"`
	IncludePatterns  []string          `json:"includePatterns,omitempty"`
	ExcludePatterns  []string          `json:"excludePatterns,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	RenderMode       RenderMode        `json:"renderMode,omitempty"`
	RetainHTML       bool              `json:"retainHtml,omitempty"`
	MaxHTMLBytes     int               `json:"maxHtmlBytes,omitempty"`
	SeedFromSitemaps bool              `json:"seedFromSitemaps,omitempty"`
}

// CrawledPage is created once per successfully fetched URL.
type CrawledPage struct {
	URL         string              `json:"url"`
	Title       string              `json:"title"`
	StatusCode  int                 `json:"statusCode"`
	ContentType string              `json:"contentType"`
	Size        int                 `json:"size"`
	LoadTime    time.Duration       `json:"loadTime"`
	Depth       int                 `json:"depth"`
	HTML        string              `json:"html,omitempty"`
	Links       []string            `json:"links"`
	Images      []string            `json:"images"`
	Scripts     []string            `json:"scripts"`
	Stylesheets []string            `json:"stylesheets"`
	Meta        map[string]string   `json:"meta"`
	Headings    map[string][]string `json:"headings"`
	Canonical   string              `json:"canonical,omitempty"`
	Rendered    bool                `json:"rendered"`
	ArchiveURI  string              `json:"archiveUri,omitempty"`
	CrawledAt   time.Time           `json:"crawledAt"`
	SEO         *seo.Audit          `json:"seo,omitempty"`
}

// CrawlError records a page that could not be crawled.
type CrawlError struct {
	URL        string    `json:"url"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
	Depth      int       `json:"depth"`
	Attempts   int       `json:"attempts"`
	Timestamp  time.Time `json:"timestamp"`
}

// CrawlProgress is a point-in-time snapshot of a running job.
type CrawlProgress struct {
	Total        int            `json:"total"`
	Processed    int            `json:"processed"`
	Pending      int            `json:"pending"`
	Errors       int            `json:"errors"`
	CurrentDepth int            `json:"currentDepth"`
	StartedAt    time.Time      `json:"startedAt"`
	ETA          *time.Duration `json:"eta,omitempty"`
}

// CrawlStats holds aggregate figures over a finished job.
type CrawlStats struct {
	AvgLoadTime         time.Duration `json:"avgLoadTime"`
	SuccessRate         float64       `json:"successRate"`
	AvgPerformanceScore float64       `json:"avgPerformanceScore"`
}

// CrawlResult is produced exactly once per job.
type CrawlResult struct {
	JobID      string        `json:"jobId"`
	Status     JobStatus     `json:"status"`
	Pages      []CrawledPage `json:"pages"`
	Errors     []CrawlError  `json:"errors"`
	Progress   CrawlProgress `json:"progress"`
	Completed  bool          `json:"completed"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
	Stats      *CrawlStats   `json:"stats,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	JobID      string
	URL        string
	Depth      int
	UserAgent  string
	Headers    http.Header
	Timeout    time.Duration
	RenderMode RenderMode
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// ContentType returns the response Content-Type header.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}
