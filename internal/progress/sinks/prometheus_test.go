package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/seo"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []crawler.Event{
		{Type: crawler.EventCrawlStarted, JobID: "job-1", TS: now},
		{Type: crawler.EventCrawlStarted, JobID: "job-1", TS: now},
		{Type: crawler.EventPageCrawled, JobID: "job-1", TS: now, Page: &crawler.CrawledPage{
			URL:        "https://Example.com/a",
			StatusCode: 200,
			Size:       1024,
			LoadTime:   200 * time.Millisecond,
			SEO:        &seo.Audit{SEOScore: 85},
		}},
		{Type: crawler.EventCrawlError, JobID: "job-1", TS: now, Error: &crawler.CrawlError{URL: "https://example.com/b"}},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))

	require.NoError(t, sink.Consume(context.Background(), []crawler.Event{
		{Type: crawler.EventCrawlFinished, JobID: "job-1", TS: now, Result: &crawler.CrawlResult{
			JobID: "job-1", Status: crawler.JobStatusSucceeded, Duration: 15 * time.Second,
		}},
	}))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("succeeded")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.errors))
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.pages.WithLabelValues("example.com", "2xx")), 1e-9)
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.pageBytes.WithLabelValues("example.com")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.pageLoad, "crawler_progress_page_load_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.jobRuntime, "crawler_progress_job_runtime_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.seoScore, "crawler_progress_seo_score"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestPrometheusSinkFinishWithoutStart(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, sink.Consume(context.Background(), []crawler.Event{
		{Type: crawler.EventCrawlFinished, JobID: "orphan", TS: time.Now()},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("unknown")))
}
