package crawler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

var (
	// ErrInvalidJob wraps every job validation failure.
	ErrInvalidJob = errors.New("invalid crawl job")
	// ErrNotHTML marks a response that is not an HTML document. Such pages are
	// skipped, not recorded as errors.
	ErrNotHTML = errors.New("response is not html")
	// ErrBlockedByRobots marks a URL disallowed by robots.txt.
	ErrBlockedByRobots = errors.New("blocked by robots.txt")
)

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClassifyResponse maps a fetched response to ErrNotHTML, an
// *HTTPStatusError, or nil when the page can be processed.
func ClassifyResponse(resp FetchResponse) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPStatusError{URL: resp.URL, StatusCode: resp.StatusCode}
	}
	if !isHTML(resp.ContentType()) {
		return ErrNotHTML
	}
	return nil
}

func isHTML(contentType string) bool {
	// Servers that omit the header are given the benefit of the doubt.
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// isRetryable decides whether another attempt could succeed. Timeouts,
// transport failures, 408, 429 and 5xx are retried; other statuses, robots
// blocks and non-HTML responses are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotHTML) || errors.Is(err, ErrBlockedByRobots) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
	}
	return true
}

func statusCodeOf(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
