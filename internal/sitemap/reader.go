// Package sitemap reads page URLs from XML sitemaps and sitemap indexes.
package sitemap

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"
)

// Limits applied to every sitemap.
const (
	DefaultMaxURLs  = 50_000
	DefaultMaxBytes = 10 << 20
	DefaultTimeout  = 15 * time.Second
)

// Config controls the Reader. Zero values pick the defaults.
type Config struct {
	Client   *http.Client
	MaxURLs  int
	MaxBytes int64
	Logger   *zap.Logger
}

// Reader fetches sitemaps over HTTP. Indexes are followed one level deep.
type Reader struct {
	client   *http.Client
	maxURLs  int
	maxBytes int64
	logger   *zap.Logger
}

// New builds a Reader.
func New(cfg Config) *Reader {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = DefaultMaxURLs
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Reader{client: cfg.Client, maxURLs: cfg.MaxURLs, maxBytes: cfg.MaxBytes, logger: cfg.Logger}
}

// Read returns the page URLs listed by sitemapURL, capped at MaxURLs.
func (r *Reader) Read(ctx context.Context, sitemapURL, userAgent string) ([]string, error) {
	doc, err := r.fetch(ctx, sitemapURL, userAgent)
	if err != nil {
		return nil, err
	}
	urls := locs(doc, "//url/loc", r.maxURLs)
	for _, child := range locs(doc, "//sitemap/loc", r.maxURLs) {
		if len(urls) >= r.maxURLs {
			break
		}
		childDoc, err := r.fetch(ctx, child, userAgent)
		if err != nil {
			r.logger.Warn("read child sitemap", zap.String("sitemap", child), zap.Error(err))
			continue
		}
		urls = append(urls, locs(childDoc, "//url/loc", r.maxURLs-len(urls))...)
	}
	return urls, nil
}

func (r *Reader) fetch(ctx context.Context, sitemapURL, userAgent string) (*xmlquery.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	var body io.Reader = io.LimitReader(resp.Body, r.maxBytes)
	if strings.HasSuffix(strings.ToLower(req.URL.Path), ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("open gzip sitemap: %w", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		body = io.LimitReader(gz, r.maxBytes)
	}
	doc, err := xmlquery.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	if doc == nil {
		return nil, errors.New("empty sitemap")
	}
	return doc, nil
}

func locs(doc *xmlquery.Node, expr string, limit int) []string {
	var out []string
	for _, node := range xmlquery.Find(doc, expr) {
		if len(out) >= limit {
			break
		}
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
