package progress

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page events.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Validate performs coarse validation on a crawl event: every event needs a
// job, a timestamp and the payload its type implies.
func Validate(evt crawler.Event) error {
	if evt.JobID == "" {
		return errors.New("job id is required")
	}
	if evt.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch evt.Type {
	case crawler.EventCrawlStarted:
	case crawler.EventPageCrawled:
		if evt.Page == nil {
			return errors.New("page-crawled requires a page")
		}
	case crawler.EventCrawlProgress:
		if evt.Progress == nil {
			return errors.New("crawl-progress requires a snapshot")
		}
	case crawler.EventCrawlError:
		if evt.Error == nil {
			return errors.New("crawl-error requires an error")
		}
	case crawler.EventCrawlFinished:
		if evt.Result == nil {
			return errors.New("crawl-finished requires a result")
		}
	default:
		return fmt.Errorf("unknown event type %q", evt.Type)
	}
	return nil
}

// isLifecycle reports whether losing evt would leave a job's state wrong in
// every downstream store.
func isLifecycle(evt crawler.Event) bool {
	return evt.Type == crawler.EventCrawlStarted || evt.Type == crawler.EventCrawlFinished
}

// ClassifyStatus groups HTTP status codes for page events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
