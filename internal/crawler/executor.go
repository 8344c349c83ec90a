package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/canon"
	"github.com/JakeFAU/seo-crawler/internal/extract"
	"github.com/JakeFAU/seo-crawler/internal/metrics"
	"github.com/JakeFAU/seo-crawler/internal/seo"
)

// outcome is what a fetch task reports back to the coordinator.
type outcome struct {
	task     task
	page     *CrawledPage
	links    []string
	err      *CrawlError
	skipped  bool
	canceled bool
}

// executor runs one task through politeness, admission, fetch and retry.
type executor struct {
	job          CrawlJob
	fetcher      Fetcher
	robots       RobotsPolicy
	limiter      OriginLimiter
	governor     *Governor
	retry        RetryPolicy
	archive      BlobStore
	hasher       Hasher
	defaultDelay time.Duration
	logger       *zap.Logger
}

func (x *executor) run(ctx context.Context, t task) (out outcome) {
	out.task = t
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("fetch task panicked", zap.String("url", t.url), zap.Any("panic", r))
			out = outcome{task: t, err: &CrawlError{
				URL:      t.url,
				Message:  fmt.Sprintf("internal error: %v", r),
				Depth:    t.depth,
				Attempts: 1,
			}}
		}
	}()

	u, err := url.Parse(t.url)
	if err != nil {
		out.err = &CrawlError{URL: t.url, Message: err.Error(), Depth: t.depth}
		return out
	}
	origin := canon.Origin(u)

	delay := max(x.job.CrawlDelay, x.defaultDelay)
	if x.job.RespectsRobots() && x.robots != nil {
		if !x.robots.IsAllowed(ctx, t.url, x.job.UserAgent) {
			if ctx.Err() != nil {
				out.canceled = true
				return out
			}
			out.err = &CrawlError{URL: t.url, Message: ErrBlockedByRobots.Error(), Depth: t.depth}
			return out
		}
		delay = max(delay, x.robots.CrawlDelay(ctx, t.url, x.job.UserAgent))
	}

	attempts := x.retry.attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := x.attempt(ctx, t, origin, delay)
		if ctx.Err() != nil {
			out.canceled = true
			return out
		}
		if err == nil {
			err = ClassifyResponse(resp)
		}
		switch {
		case err == nil:
			out.page, out.links = x.buildPage(ctx, t, resp)
			return out
		case errors.Is(err, ErrNotHTML):
			x.logger.Debug("skipping non-html response",
				zap.String("url", t.url),
				zap.String("content_type", resp.ContentType()),
			)
			out.skipped = true
			return out
		}
		lastErr = err
		if !isRetryable(err) || attempt == attempts-1 {
			out.err = &CrawlError{
				URL:        t.url,
				Message:    err.Error(),
				StatusCode: statusCodeOf(err),
				Depth:      t.depth,
				Attempts:   attempt + 1,
			}
			return out
		}
		x.logger.Debug("fetch attempt failed, retrying",
			zap.String("url", t.url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if err := x.retry.wait(ctx, attempt); err != nil {
			out.canceled = true
			return out
		}
	}
	out.err = &CrawlError{URL: t.url, Message: fmt.Sprint(lastErr), Depth: t.depth, Attempts: attempts}
	return out
}

// attempt performs one politeness wait, permit acquisition and fetch. The
// politeness wait happens first so a slow origin never holds a permit.
func (x *executor) attempt(ctx context.Context, t task, origin string, delay time.Duration) (FetchResponse, error) {
	if err := x.limiter.Wait(ctx, origin, delay); err != nil {
		return FetchResponse{}, err
	}
	if err := x.governor.Acquire(ctx); err != nil {
		return FetchResponse{}, err
	}
	defer x.governor.Release()

	fetchCtx, cancel := context.WithTimeout(ctx, x.job.Timeout)
	defer cancel()
	start := time.Now()
	resp, err := x.fetcher.Fetch(fetchCtx, FetchRequest{
		JobID:      x.job.ID,
		URL:        t.url,
		Depth:      t.depth,
		UserAgent:  x.job.UserAgent,
		Headers:    x.job.httpHeaders(),
		Timeout:    x.job.Timeout,
		RenderMode: x.job.RenderMode,
	})
	if resp.Duration <= 0 {
		resp.Duration = time.Since(start)
	}
	metrics.ObserveFetchDuration(resp.UsedHeadless, resp.Duration)
	if err != nil {
		return resp, fmt.Errorf("fetch %s: %w", t.url, err)
	}
	return resp, nil
}

func (x *executor) buildPage(ctx context.Context, t task, resp FetchResponse) (*CrawledPage, []string) {
	pageURL := resp.URL
	if pageURL == "" {
		pageURL = t.url
	}
	doc := extract.Extract(resp.Body, pageURL)
	audit := seo.Analyze(resp.Body, pageURL, seo.Options{LoadTime: resp.Duration, PageSize: len(resp.Body)})

	page := &CrawledPage{
		URL:         t.url,
		Title:       doc.Title,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType(),
		Size:        len(resp.Body),
		LoadTime:    resp.Duration,
		Depth:       t.depth,
		Links:       doc.Links,
		Images:      doc.Images,
		Scripts:     doc.Scripts,
		Stylesheets: doc.Stylesheets,
		Meta:        doc.Meta,
		Headings:    doc.Headings,
		Canonical:   doc.Canonical,
		Rendered:    resp.UsedHeadless,
		SEO:         &audit,
	}
	if x.job.RetainHTML {
		page.HTML = truncateUTF8(resp.Body, x.job.MaxHTMLBytes)
	}
	page.ArchiveURI = x.archiveBody(ctx, t.url, resp.Body)
	return page, doc.Links
}

// archiveBody stores the full body. Failures are logged and never fail the page.
func (x *executor) archiveBody(ctx context.Context, pageURL string, body []byte) string {
	if x.archive == nil || x.hasher == nil {
		return ""
	}
	digest, err := x.hasher.Hash(body)
	if err != nil {
		x.logger.Warn("hash page body", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	uri, err := x.archive.PutObject(ctx, x.job.ID+"/"+digest+".html", "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		x.logger.Warn("archive page body", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	return uri
}

func truncateUTF8(body []byte, limit int) string {
	if limit <= 0 || len(body) <= limit {
		return string(body)
	}
	cut := body[:limit]
	for i := 0; i < utf8.UTFMax-1 && len(cut) > 0; i++ {
		if r, size := utf8.DecodeLastRune(cut); r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return string(cut)
}
