package crawler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	t.Parallel()

	j := CrawlJob{URLs: []string{"https://example.com"}}.WithDefaults()
	require.Zero(t, j.MaxPages)
	require.ErrorIs(t, j.Validate(), ErrInvalidJob)
	require.Equal(t, DefaultTimeout, j.Timeout)
	require.Equal(t, DefaultRetries, j.Retries)
	require.Equal(t, DefaultConcurrency, j.Concurrency)
	require.Equal(t, DefaultUserAgent, j.UserAgent)
	require.Equal(t, DefaultMaxHTMLBytes, j.MaxHTMLBytes)
	require.Equal(t, RenderNever, j.RenderMode)
	require.True(t, j.RespectsRobots())
	require.Zero(t, j.MaxDepth)
	require.Zero(t, j.CrawlDelay)

	respect := false
	j = CrawlJob{RespectRobots: &respect, Retries: 1, Concurrency: 8}.WithDefaults()
	require.False(t, j.RespectsRobots())
	require.Equal(t, 1, j.Retries)
	require.Equal(t, 8, j.Concurrency)
}

func TestDefaultJob(t *testing.T) {
	t.Parallel()

	j := DefaultJob()
	require.Equal(t, 3, j.MaxDepth)
	require.Equal(t, 100, j.MaxPages)
	require.Equal(t, 30*time.Second, j.Timeout)
	require.Equal(t, time.Second, j.CrawlDelay)
	require.Equal(t, 5, j.Concurrency)
	require.True(t, j.RespectsRobots())
	require.Equal(t, j, j.WithDefaults())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := DefaultJob()
	valid.URLs = []string{"https://example.com", "http://example.org/path"}
	require.NoError(t, valid.Validate())

	noPages := valid
	noPages.MaxPages = 0
	require.ErrorIs(t, noPages.Validate(), ErrInvalidJob)

	negativeDelay := valid
	negativeDelay.CrawlDelay = -time.Second
	require.ErrorIs(t, negativeDelay.Validate(), ErrInvalidJob)

	auto := valid
	auto.RenderMode = RenderAuto
	require.NoError(t, auto.Validate())
}

func TestHTTPHeaders(t *testing.T) {
	t.Parallel()

	j := CrawlJob{Headers: map[string]string{"accept-language": "en", "X-Trace": "1"}}
	require.Equal(t, http.Header{"Accept-Language": {"en"}, "X-Trace": {"1"}}, j.httpHeaders())
}

func TestClassifyResponse(t *testing.T) {
	t.Parallel()

	html := http.Header{"Content-Type": {"text/html; charset=utf-8"}}
	require.NoError(t, ClassifyResponse(FetchResponse{StatusCode: 200, Headers: html}))
	require.NoError(t, ClassifyResponse(FetchResponse{StatusCode: 204}))
	require.NoError(t, ClassifyResponse(FetchResponse{StatusCode: 200, Headers: http.Header{"Content-Type": {"application/xhtml+xml"}}}))
	require.ErrorIs(t, ClassifyResponse(FetchResponse{StatusCode: 200, Headers: http.Header{"Content-Type": {"application/pdf"}}}), ErrNotHTML)

	err := ClassifyResponse(FetchResponse{URL: "https://example.com/x", StatusCode: 503, Headers: html})
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, 503, statusErr.StatusCode)
	require.Equal(t, "unexpected status 503 Service Unavailable", err.Error())
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not html", ErrNotHTML, false},
		{"robots", ErrBlockedByRobots, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"404", &HTTPStatusError{StatusCode: 404}, false},
		{"408", &HTTPStatusError{StatusCode: 408}, true},
		{"429", &HTTPStatusError{StatusCode: 429}, true},
		{"502", &HTTPStatusError{StatusCode: 502}, true},
		{"transport", errors.New("connection reset by peer"), true},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, isRetryable(tc.err), tc.name)
	}
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Second, ExponentialBackoff(0))
	require.Equal(t, 2*time.Second, ExponentialBackoff(1))
	require.Equal(t, 4*time.Second, ExponentialBackoff(2))
	require.Equal(t, time.Second, ExponentialBackoff(-3))
	require.Equal(t, 1, RetryPolicy{}.attempts())
	require.Equal(t, 3, NewRetryPolicy(3).attempts())
}
