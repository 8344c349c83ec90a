package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePage struct {
	status      int
	contentType string
	body        string
}

// fakeFetcher serves canned pages and counts fetches per URL.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]fakePage
	counts map[string]int
	hook   func(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

func newFakeFetcher(pages map[string]fakePage) *fakeFetcher {
	return &fakeFetcher{pages: pages, counts: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	f.counts[req.URL]++
	page, ok := f.pages[req.URL]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	if !ok {
		return FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound, Headers: http.Header{"Content-Type": {"text/html"}}}, nil
	}
	status := page.status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := page.contentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return FetchResponse{
		URL:        req.URL,
		StatusCode: status,
		Headers:    http.Header{"Content-Type": {contentType}},
		Body:       []byte(page.body),
		Duration:   10 * time.Millisecond,
	}, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[url]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.counts {
		n += c
	}
	return n
}

func (f *fakeFetcher) fetched() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out
}

type fakeRobots struct {
	disallow []string
	delay    time.Duration
	sitemaps []string
}

func (r fakeRobots) IsAllowed(_ context.Context, rawURL, _ string) bool {
	for _, prefix := range r.disallow {
		if strings.HasPrefix(rawURL, prefix) {
			return false
		}
	}
	return true
}

func (r fakeRobots) CrawlDelay(context.Context, string, string) time.Duration { return r.delay }

func (r fakeRobots) Sitemaps(context.Context, string, string) []string { return r.sitemaps }

// recordingLimiter never blocks and remembers the delays it was asked for.
type recordingLimiter struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (l *recordingLimiter) Wait(ctx context.Context, _ string, delay time.Duration) error {
	l.mu.Lock()
	l.delays = append(l.delays, delay)
	l.mu.Unlock()
	return ctx.Err()
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

func (s *recordingSink) count(t EventType) int {
	n := 0
	for _, et := range s.types() {
		if et == t {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T, fetcher Fetcher, mutate ...func(*EngineConfig)) *Engine {
	t.Helper()
	cfg := EngineConfig{
		Fetcher:    fetcher,
		Robots:     fakeRobots{},
		BatchPause: -1,
		Backoff:    func(int) time.Duration { return 0 },
		NewLimiter: func() OriginLimiter { return &recordingLimiter{} },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine
}

func html(title string, links ...string) fakePage {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title></head><body><h1>" + title + "</h1>")
	for _, l := range links {
		b.WriteString(`<a href="` + l + `">` + l + `</a>`)
	}
	b.WriteString("</body></html>")
	return fakePage{body: b.String()}
}

func job(maxDepth, maxPages int, seeds ...string) CrawlJob {
	return CrawlJob{URLs: seeds, MaxDepth: maxDepth, MaxPages: maxPages, Concurrency: 2}
}

func pageURLs(result CrawlResult) map[string]bool {
	out := make(map[string]bool, len(result.Pages))
	for _, p := range result.Pages {
		out[p.URL] = true
	}
	return out
}

func TestNewEngine_RequiresFetcher(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(EngineConfig{})
	require.Error(t, err)
}

func TestStart_RejectsInvalidJobs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		job  CrawlJob
	}{
		{"no urls", CrawlJob{MaxPages: 10}},
		{"negative depth", CrawlJob{URLs: []string{"https://example.com"}, MaxDepth: -1}},
		{"negative max pages", CrawlJob{URLs: []string{"https://example.com"}, MaxPages: -5}},
		{"relative url", CrawlJob{URLs: []string{"/just/a/path"}}},
		{"ftp url", CrawlJob{URLs: []string{"ftp://example.com/"}}},
		{"unknown render mode", CrawlJob{URLs: []string{"https://example.com"}, RenderMode: "sometimes"}},
		{"bad include pattern", CrawlJob{URLs: []string{"https://example.com"}, IncludePatterns: []string{"[unclosed"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fetcher := newFakeFetcher(nil)
			engine := newTestEngine(t, fetcher)

			run, err := engine.Start(context.Background(), tc.job)
			require.Nil(t, run)
			require.ErrorIs(t, err, ErrInvalidJob)
			require.Zero(t, fetcher.total())
		})
	}
}

func TestCrawl_MaxDepthZeroFetchesOnlySeed(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/": html("Home", "/about", "/blog/post"),
	})
	engine := newTestEngine(t, fetcher)

	result, err := engine.Crawl(context.Background(), job(0, 10, "https://example.com"))
	require.NoError(t, err)

	require.True(t, result.Completed)
	require.Equal(t, JobStatusSucceeded, result.Status)
	require.Equal(t, map[string]int{"https://example.com/": 1}, fetcher.fetched())
	require.Len(t, result.Pages, 1)
	require.Zero(t, result.Progress.Pending)
	require.Equal(t, 1, result.Progress.Total)
}

func TestCrawl_FollowsLinksWithinScopeAndDepth(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/": html("Home",
			"/a",
			"/a/b",
			"/a/b/c",
			"/report.pdf",
			"https://other.example/",
			"mailto:team@example.com",
			"/a#section",
		),
		"https://example.com/a":   html("A", "/"),
		"https://example.com/a/b": html("B", "/a/b/c/d"),
	})
	engine := newTestEngine(t, fetcher)

	result, err := engine.Crawl(context.Background(), job(2, 50, "https://example.com/"))
	require.NoError(t, err)

	require.Equal(t, map[string]bool{
		"https://example.com/":    true,
		"https://example.com/a":   true,
		"https://example.com/a/b": true,
	}, pageURLs(result))
	require.Zero(t, fetcher.count("https://example.com/report.pdf"))
	require.Zero(t, fetcher.count("https://other.example/"))
	require.Zero(t, fetcher.count("https://example.com/a/b/c"))
	for _, page := range result.Pages {
		require.LessOrEqual(t, page.Depth, 2)
		require.NotNil(t, page.SEO)
	}
	require.Empty(t, result.Errors)
}

func TestCrawl_NoDuplicateFetches(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":  html("Home", "/a", "/b", "/a/", "/?"),
		"https://example.com/a": html("A", "/", "/b", "/a?"),
		"https://example.com/b": html("B", "/", "/a", "https://EXAMPLE.com:443/a"),
	})
	engine := newTestEngine(t, fetcher)

	result, err := engine.Crawl(context.Background(), job(3, 50, "https://example.com"))
	require.NoError(t, err)

	for url, n := range fetcher.fetched() {
		require.Equal(t, 1, n, url)
	}
	require.Len(t, result.Pages, 3)
}

func TestCrawl_BudgetRespected(t *testing.T) {
	t.Parallel()

	links := make([]string, 0, 40)
	pages := map[string]fakePage{}
	for i := range 40 {
		path := fmt.Sprintf("/p%d", i)
		links = append(links, path)
		if i%3 == 0 {
			pages["https://example.com"+path] = fakePage{status: http.StatusInternalServerError}
			continue
		}
		pages["https://example.com"+path] = html(path)
	}
	pages["https://example.com/"] = html("Home", links...)
	fetcher := newFakeFetcher(pages)
	engine := newTestEngine(t, fetcher)

	j := job(1, 7, "https://example.com")
	j.Retries = 1
	result, err := engine.Crawl(context.Background(), j)
	require.NoError(t, err)

	require.LessOrEqual(t, len(result.Pages)+len(result.Errors), 7)
	require.LessOrEqual(t, len(fetcher.fetched()), 7)
	require.Equal(t, 7, result.Progress.Processed)
}

func TestCrawl_ConcurrencyBound(t *testing.T) {
	t.Parallel()

	links := make([]string, 0, 12)
	pages := map[string]fakePage{}
	for i := range 12 {
		path := fmt.Sprintf("/p%d", i)
		links = append(links, path)
		pages["https://example.com"+path] = html(path)
	}
	pages["https://example.com/"] = html("Home", links...)
	fetcher := newFakeFetcher(pages)

	var inFlight, peak atomic.Int64
	inner := newFakeFetcher(pages)
	fetcher.hook = func(ctx context.Context, req FetchRequest) (FetchResponse, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if current <= p || peak.CompareAndSwap(p, current) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		return inner.Fetch(ctx, req)
	}
	engine := newTestEngine(t, fetcher)

	j := job(1, 20, "https://example.com")
	j.Concurrency = 3
	result, err := engine.Crawl(context.Background(), j)
	require.NoError(t, err)

	require.Len(t, result.Pages, 13)
	require.LessOrEqual(t, peak.Load(), int64(3))
	require.Greater(t, peak.Load(), int64(1))
}

func TestCrawl_TimeoutsExhaustRetriesIntoOneError(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(nil)
	fetcher.hook = func(ctx context.Context, _ FetchRequest) (FetchResponse, error) {
		<-ctx.Done()
		return FetchResponse{}, ctx.Err()
	}
	engine := newTestEngine(t, fetcher)
	sink := &recordingSink{}

	j := job(1, 10, "https://example.com/slow")
	j.Retries = 3
	j.Timeout = 10 * time.Millisecond
	result, err := engine.Crawl(context.Background(), j, sink)
	require.NoError(t, err)

	require.Empty(t, result.Pages)
	require.Len(t, result.Errors, 1)
	require.Equal(t, 3, result.Errors[0].Attempts)
	require.Equal(t, "https://example.com/slow", result.Errors[0].URL)
	require.Equal(t, 3, fetcher.count("https://example.com/slow"))
	require.Equal(t, 1, sink.count(EventCrawlError))
	require.True(t, result.Completed)
}

func TestCrawl_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":      html("Home", "/gone", "/flaky"),
		"https://example.com/gone":  {status: http.StatusGone},
		"https://example.com/flaky": {status: http.StatusServiceUnavailable},
	})
	engine := newTestEngine(t, fetcher)

	j := job(1, 10, "https://example.com")
	j.Retries = 2
	result, err := engine.Crawl(context.Background(), j)
	require.NoError(t, err)

	require.Len(t, result.Errors, 2)
	byURL := map[string]CrawlError{}
	for _, e := range result.Errors {
		byURL[e.URL] = e
	}
	require.Equal(t, http.StatusGone, byURL["https://example.com/gone"].StatusCode)
	require.Equal(t, 1, byURL["https://example.com/gone"].Attempts)
	require.Equal(t, 2, byURL["https://example.com/flaky"].Attempts)
	require.Equal(t, 2, fetcher.count("https://example.com/flaky"))
	require.InDelta(t, 1.0/3.0, result.Stats.SuccessRate, 1e-9)
}

func TestCrawl_SkipsNonHTML(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":         html("Home", "/download"),
		"https://example.com/download": {contentType: "application/octet-stream", body: "\x00\x01"},
	})
	engine := newTestEngine(t, fetcher)

	result, err := engine.Crawl(context.Background(), job(1, 10, "https://example.com"))
	require.NoError(t, err)

	require.Len(t, result.Pages, 1)
	require.Empty(t, result.Errors)
	require.Equal(t, 1, fetcher.count("https://example.com/download"))
	require.Equal(t, 2, result.Progress.Processed)
}

func TestCrawl_RobotsBlockedRecordedWithoutFetch(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":        html("Home", "/private/x", "/public"),
		"https://example.com/public":  html("Public"),
		"https://example.com/private/x": html("Private"),
	})
	engine := newTestEngine(t, fetcher, func(cfg *EngineConfig) {
		cfg.Robots = fakeRobots{disallow: []string{"https://example.com/private"}}
	})

	result, err := engine.Crawl(context.Background(), job(2, 10, "https://example.com"))
	require.NoError(t, err)

	require.Zero(t, fetcher.count("https://example.com/private/x"))
	require.Len(t, result.Errors, 1)
	require.Equal(t, ErrBlockedByRobots.Error(), result.Errors[0].Message)
	require.Len(t, result.Pages, 2)

	respect := false
	j := job(2, 10, "https://example.com")
	j.RespectRobots = &respect
	result, err = engine.Crawl(context.Background(), j)
	require.NoError(t, err)
	require.Len(t, result.Pages, 3)
}

func TestCrawl_EffectiveDelayIsLargestSource(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		jobDelay   time.Duration
		robots     time.Duration
		defaultDel time.Duration
		want       time.Duration
	}{
		{"job wins", 300 * time.Millisecond, 100 * time.Millisecond, 50 * time.Millisecond, 300 * time.Millisecond},
		{"robots wins", 100 * time.Millisecond, 2 * time.Second, 50 * time.Millisecond, 2 * time.Second},
		{"default wins", 0, 0, 75 * time.Millisecond, 75 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			limiter := &recordingLimiter{}
			fetcher := newFakeFetcher(map[string]fakePage{"https://example.com/": html("Home")})
			engine := newTestEngine(t, fetcher, func(cfg *EngineConfig) {
				cfg.Robots = fakeRobots{delay: tc.robots}
				cfg.DefaultDelay = tc.defaultDel
				cfg.NewLimiter = func() OriginLimiter { return limiter }
			})

			j := job(0, 1, "https://example.com")
			j.CrawlDelay = tc.jobDelay
			_, err := engine.Crawl(context.Background(), j)
			require.NoError(t, err)
			require.Equal(t, []time.Duration{tc.want}, limiter.delays)
		})
	}
}

func TestCrawl_CancelResolvesIncomplete(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var once sync.Once
	fetcher := newFakeFetcher(nil)
	fetcher.hook = func(ctx context.Context, _ FetchRequest) (FetchResponse, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return FetchResponse{}, ctx.Err()
	}
	engine := newTestEngine(t, fetcher)

	j := job(1, 10, "https://example.com/a", "https://example.com/b")
	j.Timeout = time.Minute
	run, err := engine.Start(context.Background(), j)
	require.NoError(t, err)

	<-started
	run.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := run.Wait(ctx)
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.Equal(t, JobStatusCanceled, result.Status)
	require.Empty(t, result.Errors)
	require.Empty(t, result.Pages)
}

// panicOnceClock panics on its n-th call and behaves normally otherwise.
type panicOnceClock struct {
	calls atomic.Int64
	n     int64
}

func (c *panicOnceClock) Now() time.Time {
	if c.calls.Add(1) == c.n {
		panic("clock exploded")
	}
	return time.Now()
}

func TestCrawl_LoopPanicYieldsIncompleteResult(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":  html("Home", "/a", "/b"),
		"https://example.com/a": html("A"),
		"https://example.com/b": html("B"),
	})
	sink := &recordingSink{}
	// Call 1 stamps startedAt, call 2 stamps crawl-started, call 3 is the
	// first outcome applied inside the loop.
	engine := newTestEngine(t, fetcher, func(cfg *EngineConfig) {
		cfg.Clock = &panicOnceClock{n: 3}
	})

	result, err := engine.Crawl(context.Background(), job(1, 10, "https://example.com"), sink)
	require.NoError(t, err)

	require.False(t, result.Completed)
	require.Equal(t, JobStatusFailed, result.Status)
	require.Contains(t, result.Err, "clock exploded")

	types := sink.types()
	require.Equal(t, EventCrawlStarted, types[0])
	require.Equal(t, EventCrawlError, types[len(types)-2])
	require.Equal(t, EventCrawlFinished, types[len(types)-1])
	require.Equal(t, genericLoopError, sink.events[len(types)-2].Error.Message)
}

func TestCrawl_SinkPanicDoesNotAbort(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":  html("Home", "/a"),
		"https://example.com/a": html("A"),
	})
	engine := newTestEngine(t, fetcher)
	bad := EventSinkFunc(func(Event) { panic("sink broke") })

	result, err := engine.Crawl(context.Background(), job(1, 10, "https://example.com"), bad)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Len(t, result.Pages, 2)
}

func TestRun_EventsStreamInOrder(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":  html("Home", "/a", "/b"),
		"https://example.com/a": html("A"),
		"https://example.com/b": {status: http.StatusNotFound},
	})
	engine := newTestEngine(t, fetcher)
	sink := &recordingSink{}

	run, err := engine.Start(context.Background(), job(1, 10, "https://example.com"), sink)
	require.NoError(t, err)

	var streamed []EventType
	for ev := range run.Events() {
		require.Equal(t, run.JobID(), ev.JobID)
		require.False(t, ev.TS.IsZero())
		streamed = append(streamed, ev.Type)
	}

	require.Equal(t, sink.types(), streamed)
	require.Equal(t, EventCrawlStarted, streamed[0])
	require.Equal(t, EventCrawlFinished, streamed[len(streamed)-1])
	require.Equal(t, 2, sink.count(EventPageCrawled))
	require.Equal(t, 1, sink.count(EventCrawlError))
	require.GreaterOrEqual(t, sink.count(EventCrawlProgress), 2)

	result, err := run.Wait(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pages, 2)

	last := sink.events[len(sink.events)-1]
	require.NotNil(t, last.Result)
	require.Equal(t, result.JobID, last.Result.JobID)
}

func TestCrawl_ProgressSnapshots(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":  html("Home", "/a", "/b", "/c"),
		"https://example.com/a": html("A"),
		"https://example.com/b": html("B"),
		"https://example.com/c": html("C"),
	})
	engine := newTestEngine(t, fetcher)
	sink := &recordingSink{}

	j := job(1, 10, "https://example.com")
	j.Concurrency = 1
	_, err := engine.Crawl(context.Background(), j, sink)
	require.NoError(t, err)

	var snapshots []CrawlProgress
	for _, ev := range sink.events {
		if ev.Type == EventCrawlProgress {
			snapshots = append(snapshots, *ev.Progress)
		}
	}
	require.Len(t, snapshots, 4)
	first := snapshots[0]
	require.Equal(t, 1, first.Processed)
	require.Equal(t, 3, first.Pending)
	require.Equal(t, 4, first.Total)
	require.NotNil(t, first.ETA)
	last := snapshots[len(snapshots)-1]
	require.Equal(t, 4, last.Processed)
	require.Zero(t, last.Pending)
	require.Equal(t, 1, last.CurrentDepth)
}

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (m *memoryBlobs) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	if m.fail {
		return "", errors.New("bucket unavailable")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[path] = b
	return "mem://" + path, nil
}

type constHasher struct{}

func (constHasher) Hash(data []byte) (string, error) { return fmt.Sprintf("h%d", len(data)), nil }

func TestCrawl_RetainsAndArchivesHTML(t *testing.T) {
	t.Parallel()

	home := html("Home page with a long enough title")
	fetcher := newFakeFetcher(map[string]fakePage{"https://example.com/": home})
	blobs := &memoryBlobs{}
	engine := newTestEngine(t, fetcher, func(cfg *EngineConfig) {
		cfg.Archive = blobs
		cfg.Hasher = constHasher{}
	})

	j := job(0, 1, "https://example.com")
	j.ID = "job-1"
	j.RetainHTML = true
	j.MaxHTMLBytes = 16
	result, err := engine.Crawl(context.Background(), j)
	require.NoError(t, err)

	require.Len(t, result.Pages, 1)
	page := result.Pages[0]
	require.Equal(t, home.body[:16], page.HTML)
	key := fmt.Sprintf("job-1/h%d.html", len(home.body))
	require.Equal(t, "mem://"+key, page.ArchiveURI)
	require.Equal(t, []byte(home.body), blobs.objects[key])

	blobs.fail = true
	result, err = engine.Crawl(context.Background(), j)
	require.NoError(t, err)
	require.Len(t, result.Pages, 1)
	require.Empty(t, result.Pages[0].ArchiveURI)
}

type fakeSitemaps map[string][]string

func (f fakeSitemaps) Read(_ context.Context, sitemapURL, _ string) ([]string, error) {
	locs, ok := f[sitemapURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return locs, nil
}

func TestCrawl_SeedsFromSitemaps(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":          html("Home"),
		"https://example.com/listed":    html("Listed"),
		"https://example.com/deep/a/b/c": html("Deep"),
	})
	engine := newTestEngine(t, fetcher, func(cfg *EngineConfig) {
		cfg.Robots = fakeRobots{sitemaps: []string{"https://example.com/sitemap.xml", "https://example.com/missing.xml"}}
		cfg.Sitemaps = fakeSitemaps{"https://example.com/sitemap.xml": {
			"https://example.com/listed",
			"https://example.com/deep/a/b/c",
			"https://other.example/page",
			"https://example.com/file.zip",
		}}
	})

	j := job(1, 10, "https://example.com")
	j.SeedFromSitemaps = true
	result, err := engine.Crawl(context.Background(), j)
	require.NoError(t, err)

	require.Equal(t, map[string]bool{
		"https://example.com/":       true,
		"https://example.com/listed": true,
	}, pageURLs(result))
}

func TestCrawl_UsesIDGenerator(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]fakePage{"https://example.com/": html("Home")})
	engine := newTestEngine(t, fetcher, func(cfg *EngineConfig) {
		cfg.IDs = staticIDs("generated-id")
	})

	result, err := engine.Crawl(context.Background(), job(0, 1, "https://example.com"))
	require.NoError(t, err)
	require.Equal(t, "generated-id", result.JobID)
}

type staticIDs string

func (s staticIDs) NewID() (string, error) { return string(s), nil }
