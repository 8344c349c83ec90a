package collyfetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

func TestFetch_ReturnsPageAndHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Seen-Agent", r.UserAgent())
		w.Header().Set("X-Seen-Trace", r.Header.Get("X-Trace"))
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	f := New(Config{})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{
		URL:       srv.URL + "/page",
		UserAgent: "SEOBot/2.0",
		Headers:   http.Header{"X-Trace": {"abc"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, srv.URL+"/page", resp.URL)
	require.Equal(t, "<html><title>ok</title></html>", string(resp.Body))
	require.Equal(t, "SEOBot/2.0", resp.Headers.Get("X-Seen-Agent"))
	require.Equal(t, "abc", resp.Headers.Get("X-Seen-Trace"))
	require.False(t, resp.UsedHeadless)
	require.Positive(t, resp.Duration)
}

func TestFetch_ErrorStatusIsAResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer srv.Close()

	f := New(Config{})
	for range 2 {
		resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "missing", string(resp.Body))
	}
}

func TestFetch_DecodesCompressedBodies(t *testing.T) {
	t.Parallel()

	const page = "<html><body>compressed page body</body></html>"
	var gz, br bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(page))
	require.NoError(t, gw.Close())
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(page))
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, acceptEncoding, r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gz.Bytes())
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(br.Bytes())
		default:
			_, _ = w.Write([]byte(page))
		}
	}))
	defer srv.Close()

	f := New(Config{})
	for _, path := range []string{"/gzip", "/br", "/plain"} {
		resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + path})
		require.NoError(t, err, path)
		require.Equal(t, page, string(resp.Body), path)
		require.Empty(t, resp.Headers.Get("Content-Encoding"), path)
	}
}

func TestFetch_HonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: addr})
	require.Error(t, err)
}

func TestCollectorFor(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second})
	collector := f.collectorFor(context.Background(), crawler.FetchRequest{URL: "https://example.com"})
	require.Equal(t, "coverage-agent", collector.UserAgent)
	require.True(t, collector.IgnoreRobotsTxt)
	require.True(t, collector.AllowURLRevisit)
	require.True(t, collector.ParseHTTPErrorResponse)
	require.Equal(t, DefaultMaxBodySize, collector.MaxBodySize)

	collector = f.collectorFor(context.Background(), crawler.FetchRequest{UserAgent: "request-agent"})
	require.Equal(t, "request-agent", collector.UserAgent)
}

func TestPageCaptureCallbacks(t *testing.T) {
	t.Parallel()

	pc := &pageCapture{
		request: crawler.FetchRequest{
			URL:     "https://example.com",
			Headers: http.Header{"X-Trace": {"yes"}, "Accept": {"text/html"}},
		},
		start: time.Now(),
	}
	hooks := &stubHooks{}
	pc.attach(hooks)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{"Accept": {"*/*"}}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))
	require.Equal(t, []string{"text/html"}, collyReq.Headers.Values("Accept"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/final")},
	})
	require.Equal(t, http.StatusCreated, pc.response.StatusCode)
	require.Equal(t, "https://example.com/final", pc.response.URL)
	require.Equal(t, "body", string(pc.response.Body))
	require.Equal(t, "ok", pc.response.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, pc.err, "boom")
}

func TestPageCaptureWithoutHeaders(t *testing.T) {
	t.Parallel()

	pc := &pageCapture{}
	collyReq := &colly.Request{Headers: &http.Header{}}
	pc.onRequest(collyReq)
	require.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
