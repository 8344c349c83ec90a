package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

// crawlRequest is the submission body. Nil fields keep the job defaults so a
// client can ask for a zero depth or a zero delay explicitly.
type crawlRequest struct {
	URLs             []string          `json:"urls"`
	MaxDepth         *int              `json:"maxDepth"`
	MaxPages         *int              `json:"maxPages"`
	UserAgent        *string           `json:"userAgent"`
	RespectRobots    *bool             `json:"respectRobotsTxt"`
	CrawlDelay       *duration         `json:"crawlDelay"`
	Timeout          *duration         `json:"timeout"`
	Retries          *int              `json:"retries"`
	Concurrency      *int              `json:"concurrency"`
	AllowedDomains   []string          `json:"allowedDomains"`
	IncludePatterns  []string          `json:"includePatterns"`
	ExcludePatterns  []string          `json:"excludePatterns"`
	Headers          map[string]string `json:"headers"`
	RenderMode       *string           `json:"renderMode"`
	RetainHTML       *bool             `json:"retainHtml"`
	MaxHTMLBytes     *int              `json:"maxHtmlBytes"`
	SeedFromSitemaps *bool             `json:"seedFromSitemaps"`
}

func (req crawlRequest) apply(job crawler.CrawlJob) crawler.CrawlJob {
	job.URLs = req.URLs
	job.AllowedDomains = req.AllowedDomains
	job.IncludePatterns = req.IncludePatterns
	job.ExcludePatterns = req.ExcludePatterns
	job.Headers = req.Headers
	set(&job.MaxDepth, req.MaxDepth)
	set(&job.MaxPages, req.MaxPages)
	set(&job.UserAgent, req.UserAgent)
	set(&job.Retries, req.Retries)
	set(&job.Concurrency, req.Concurrency)
	set(&job.RetainHTML, req.RetainHTML)
	set(&job.MaxHTMLBytes, req.MaxHTMLBytes)
	set(&job.SeedFromSitemaps, req.SeedFromSitemaps)
	if req.RespectRobots != nil {
		respect := *req.RespectRobots
		job.RespectRobots = &respect
	}
	if req.CrawlDelay != nil {
		job.CrawlDelay = time.Duration(*req.CrawlDelay)
	}
	if req.Timeout != nil {
		job.Timeout = time.Duration(*req.Timeout)
	}
	if req.RenderMode != nil {
		job.RenderMode = crawler.RenderMode(*req.RenderMode)
	}
	return job
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// duration accepts a Go duration string ("1.5s") or a number of milliseconds.
type duration time.Duration

func (d *duration) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = duration(parsed)
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return errors.New("duration must be a string like \"2s\" or milliseconds")
	}
	*d = duration(time.Duration(ms * float64(time.Millisecond)))
	return nil
}

type jobDTO struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	URLs        []string            `json:"urls"`
	SubmittedAt time.Time           `json:"submitted_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
	Pages       int                 `json:"pages"`
	Errors      int                 `json:"errors"`
	Completed   bool                `json:"completed"`
	Error       string              `json:"error,omitempty"`
	Stats       *crawler.CrawlStats `json:"stats,omitempty"`
	Job         crawler.CrawlJob    `json:"job"`
}

func toJobDTO(rec store.JobRecord) jobDTO {
	return jobDTO{
		ID:          rec.ID,
		Status:      string(rec.Status),
		URLs:        rec.Job.URLs,
		SubmittedAt: rec.SubmittedAt,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
		Pages:       rec.Pages,
		Errors:      rec.Errors,
		Completed:   rec.Completed,
		Error:       rec.ErrorText,
		Stats:       rec.Stats,
		Job:         rec.Job,
	}
}
