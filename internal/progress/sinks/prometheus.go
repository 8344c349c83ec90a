package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/metrics"
	"github.com/JakeFAU/seo-crawler/internal/progress"
)

// PrometheusSink exports job-level progress metrics. Collector names carry the
// crawler_progress_ prefix so they can share a registry with internal/metrics.
type PrometheusSink struct {
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	jobRuntime   *prometheus.HistogramVec

	pages     *prometheus.CounterVec
	pageBytes *prometheus.CounterVec
	pageLoad  *prometheus.HistogramVec
	errors    prometheus.Counter
	seoScore  prometheus.Histogram

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_progress_jobs_started_total",
			Help: "Total jobs that have started.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_progress_jobs_finished_total",
			Help: "Total jobs finished partitioned by final status.",
		}, []string{"status"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_progress_jobs_running",
			Help: "Current number of running jobs.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_progress_job_runtime_seconds",
			Help:    "Wall time per finished job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"status"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_progress_pages_total",
			Help: "Crawled pages partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		pageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_progress_page_bytes_total",
			Help: "Bytes of crawled pages per site.",
		}, []string{"site"}),
		pageLoad: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_progress_page_load_seconds",
			Help:    "Page load time partitioned by site and status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"site", "status_class"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_progress_errors_total",
			Help: "Pages that ended in a crawl error.",
		}),
		seoScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_progress_seo_score",
			Help:    "Distribution of page SEO scores.",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsFinished,
		s.jobsRunning,
		s.jobRuntime,
		s.pages,
		s.pageBytes,
		s.pageLoad,
		s.errors,
		s.seoScore,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []crawler.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt crawler.Event) {
	switch evt.Type {
	case crawler.EventCrawlStarted:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.jobsRunning.Inc()
		}
	case crawler.EventCrawlFinished:
		status := "unknown"
		if evt.Result != nil {
			status = string(evt.Result.Status)
			if evt.Result.Duration > 0 {
				s.jobRuntime.WithLabelValues(status).Observe(evt.Result.Duration.Seconds())
			}
		}
		s.jobsFinished.WithLabelValues(status).Inc()
		if s.tracker.complete(evt.JobID) {
			s.jobsRunning.Dec()
		}
	case crawler.EventPageCrawled:
		if evt.Page != nil {
			s.observePage(evt.Page)
		}
	case crawler.EventCrawlError:
		s.errors.Inc()
	}
}

func (s *PrometheusSink) observePage(page *crawler.CrawledPage) {
	site := metrics.SanitizeSite(page.URL)
	statusClass := string(progress.ClassifyStatus(page.StatusCode))
	s.pages.WithLabelValues(site, statusClass).Inc()
	if page.Size > 0 {
		s.pageBytes.WithLabelValues(site).Add(float64(page.Size))
	}
	if page.LoadTime > 0 {
		s.pageLoad.WithLabelValues(site, statusClass).Observe(page.LoadTime.Seconds())
	}
	if page.SEO != nil {
		s.seoScore.Observe(float64(page.SEO.SEOScore))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type jobTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]struct{})}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
