// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// DefaultMaxBodySize caps response bodies.
const DefaultMaxBodySize = 10 << 20

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
	// Transport replaces the pooled default transport. It is always wrapped
	// by the content-decoding transport.
	Transport http.RoundTripper
}

// Fetcher issues plain HTTP GETs through a colly collector. The engine owns
// robots.txt, politeness and retries, so the collector does none of that.
type Fetcher struct {
	cfg       Config
	prototype *colly.Collector
}

// New builds a Fetcher. The prototype collector and its transport are shared
// so connections are pooled across fetches.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = crawler.DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = crawler.DefaultUserAgent
	}
	transport := cfg.Transport
	if transport == nil {
		transport = pooledTransport()
	}

	proto := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)
	proto.WithTransport(&decodingTransport{base: transport, maxBytes: int64(cfg.MaxBodySize)})
	return &Fetcher{cfg: cfg, prototype: proto}
}

// Fetch performs one GET. Any HTTP status is a response; only transport
// failures and cancellation are errors.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	pc := &pageCapture{request: request, start: time.Now()}
	collector := f.collectorFor(ctx, request)
	pc.attach(collector)

	visited := make(chan error, 1)
	go func() { visited <- collector.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-visited:
		if err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly visit failed: %w", err)
		}
	}
	if pc.err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("colly response failed: %w", pc.err)
	}
	return pc.response, nil
}

// collectorFor clones the prototype with the request's agent, timeout and
// context.
func (f *Fetcher) collectorFor(ctx context.Context, request crawler.FetchRequest) *colly.Collector {
	c := f.prototype.Clone()
	c.Context = ctx
	c.UserAgent = f.cfg.UserAgent
	if request.UserAgent != "" {
		c.UserAgent = request.UserAgent
	}
	timeout := f.cfg.Timeout
	if request.Timeout > 0 {
		timeout = request.Timeout
	}
	c.SetRequestTimeout(timeout)
	return c
}

// callbackRegistrar is the slice of *colly.Collector pageCapture hooks into.
type callbackRegistrar interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// pageCapture records the outcome of one visit.
type pageCapture struct {
	request  crawler.FetchRequest
	start    time.Time
	response crawler.FetchResponse
	err      error
}

func (pc *pageCapture) attach(c callbackRegistrar) {
	c.OnRequest(pc.onRequest)
	c.OnResponse(pc.onResponse)
	c.OnError(func(_ *colly.Response, err error) { pc.err = err })
}

// onRequest replaces colly's headers with the job's custom headers.
func (pc *pageCapture) onRequest(r *colly.Request) {
	for key, values := range pc.request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func (pc *pageCapture) onResponse(r *colly.Response) {
	headers := http.Header{}
	if r.Headers != nil {
		headers = r.Headers.Clone()
	}
	pc.response = crawler.FetchResponse{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(pc.start),
	}
}

func pooledTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
}
