// Package fetcher routes fetches between the plain HTTP fetcher and the
// headless renderer according to the job's render mode.
package fetcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// Detector decides whether an HTTP response should be re-fetched in a browser.
type Detector interface {
	ShouldPromote(resp crawler.FetchResponse) bool
}

// Router implements crawler.Fetcher on top of an HTTP fetcher and an
// optional renderer.
type Router struct {
	http     crawler.Fetcher
	renderer crawler.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewRouter builds a Router. renderer and detector may be nil, in which case
// every request goes over HTTP.
func NewRouter(httpFetcher, renderer crawler.Fetcher, detector Detector, logger *zap.Logger) (*Router, error) {
	if httpFetcher == nil {
		return nil, errors.New("fetcher: http fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{http: httpFetcher, renderer: renderer, detector: detector, logger: logger}, nil
}

// Fetch dispatches request by its RenderMode.
func (r *Router) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	switch request.RenderMode {
	case crawler.RenderAlways:
		if r.renderer != nil {
			resp, err := r.renderer.Fetch(ctx, request)
			if err == nil {
				return resp, nil
			}
			if ctx.Err() != nil {
				return crawler.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
			}
			r.logger.Warn("render failed, falling back to http", zap.String("url", request.URL), zap.Error(err))
		}
		return r.fetchHTTP(ctx, request)
	case crawler.RenderAuto:
		resp, err := r.fetchHTTP(ctx, request)
		if err != nil || r.renderer == nil || r.detector == nil || !r.detector.ShouldPromote(resp) {
			return resp, err
		}
		r.logger.Debug("promoting to headless render", zap.String("url", request.URL))
		rendered, rerr := r.renderer.Fetch(ctx, request)
		if rerr != nil {
			r.logger.Warn("promoted render failed, keeping http response", zap.String("url", request.URL), zap.Error(rerr))
			return resp, nil
		}
		return rendered, nil
	default:
		return r.fetchHTTP(ctx, request)
	}
}

func (r *Router) fetchHTTP(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := r.http.Fetch(ctx, request)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("http fetch %s: %w", request.URL, err)
	}
	return resp, nil
}
