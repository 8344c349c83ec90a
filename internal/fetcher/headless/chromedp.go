// Package headless renders pages in headless Chrome through chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// DefaultNavigationTimeout bounds a render when the request carries no timeout.
const DefaultNavigationTimeout = 45 * time.Second

const defaultSettleDelay = 500 * time.Millisecond

// Config controls the behavior of the headless fetcher.
type Config struct {
	// MaxParallel caps concurrent browser tabs; zero means unlimited.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// SettleDelay is how long to wait after the body is ready so client
	// scripts can populate the DOM.
	SettleDelay time.Duration
	ExecPath    string
	NoSandbox   bool
}

// Fetcher implements crawler.Fetcher on one shared browser process; each
// Fetch opens its own tab.
type Fetcher struct {
	cfg         Config
	tabs        *semaphore.Weighted
	browser     context.Context
	stopBrowser context.CancelFunc
}

// NewChromedp prepares the browser allocator. Chrome itself starts lazily on
// the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}

	f := &Fetcher{cfg: cfg}
	if cfg.MaxParallel > 0 {
		f.tabs = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}
	f.browser, f.stopBrowser = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	return f, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.stopBrowser()
}

// Fetch loads request.URL in a fresh tab, waits for the DOM to settle and
// returns the serialized document. The tab is torn down when ctx is done.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if err := f.acquireTab(ctx); err != nil {
		return crawler.FetchResponse{}, err
	}
	defer f.releaseTab()

	tab, closeTab := chromedp.NewContext(f.browser)
	defer closeTab()
	defer context.AfterFunc(ctx, closeTab)()

	tab, cancel := context.WithTimeout(tab, f.timeoutFor(request.Timeout))
	defer cancel()

	doc := &documentResponse{}
	chromedp.ListenTarget(tab, doc.observe)

	start := time.Now()
	var html, location string
	err := chromedp.Run(tab,
		prepareTab(f.userAgent(request), request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return crawler.FetchResponse{}, fmt.Errorf("headless fetch canceled: %w", ctx.Err())
		}
		return crawler.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}

	status, headers, finalURL := doc.result(request.URL, location)
	// The serialized DOM is HTML whatever the server originally sent.
	headers.Set("Content-Type", "text/html; charset=utf-8")
	return crawler.FetchResponse{
		URL:          finalURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) userAgent(request crawler.FetchRequest) string {
	if request.UserAgent != "" {
		return request.UserAgent
	}
	return f.cfg.UserAgent
}

func prepareTab(agent string, headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if agent != "" {
			if err := emulation.SetUserAgentOverride(agent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) == 0 {
			return nil
		}
		if err := network.SetExtraHTTPHeaders(cdpHeaders(headers)).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

func (f *Fetcher) acquireTab(ctx context.Context) error {
	if f.tabs == nil {
		return nil
	}
	if err := f.tabs.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("headless slot wait canceled: %w", err)
	}
	return nil
}

func (f *Fetcher) releaseTab() {
	if f.tabs != nil {
		f.tabs.Release(1)
	}
}

func (f *Fetcher) timeoutFor(requested time.Duration) time.Duration {
	switch {
	case requested > 0:
		return requested
	case f.cfg.NavigationTimeout > 0:
		return f.cfg.NavigationTimeout
	default:
		return DefaultNavigationTimeout
	}
}

// documentResponse remembers the HTTP response of the top-level document.
// The first document response fixes the main frame; documents loaded by
// iframes are ignored.
type documentResponse struct {
	mu      sync.Mutex
	frame   cdp.FrameID
	status  int
	headers http.Header
	url     string
}

func (d *documentResponse) observe(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frame != "" && resp.FrameID != d.frame {
		return
	}
	d.frame = resp.FrameID
	d.status = int(resp.Response.Status)
	d.headers = httpHeaders(resp.Response.Headers)
	d.url = resp.Response.URL
}

// result falls back to the browser location, then the requested URL, and
// assumes 200 when no document response was observed.
func (d *documentResponse) result(requestURL, location string) (int, http.Header, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := d.headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	finalURL := d.url
	if finalURL == "" {
		finalURL = location
	}
	if finalURL == "" {
		finalURL = requestURL
	}
	return status, headers, finalURL
}

func httpHeaders(src network.Headers) http.Header {
	out := make(http.Header, len(src))
	for key, value := range src {
		switch v := value.(type) {
		case string:
			out.Add(key, v)
		case []string:
			for _, entry := range v {
				out.Add(key, entry)
			}
		case []any:
			for _, entry := range v {
				out.Add(key, fmt.Sprint(entry))
			}
		default:
			out.Add(key, fmt.Sprint(v))
		}
	}
	return out
}

func cdpHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			out[key] = values[0]
		default:
			out[key] = append([]string(nil), values...)
		}
	}
	return out
}
