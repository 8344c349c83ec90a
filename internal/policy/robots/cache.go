// Package robots caches per-origin robots.txt policies with a fixed TTL.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/seo-crawler/internal/canon"
	"github.com/JakeFAU/seo-crawler/internal/metrics"
)

const (
	// DefaultTTL is how long a fetched policy stays valid.
	DefaultTTL = time.Hour
	// DefaultTimeout bounds a single robots.txt fetch.
	DefaultTimeout = 10 * time.Second

	maxRobotsBytes = 1 << 20
)

var errNoRobots = errors.New("robots.txt unavailable")

// Clock supplies the current time; tests inject a fake one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config controls cache behaviour. Zero values pick the defaults.
type Config struct {
	TTL     time.Duration
	Timeout time.Duration
	Client  *http.Client
	Clock   Clock
	Logger  *zap.Logger
}

// Policy is one cached robots.txt evaluation for an origin and user agent.
type Policy struct {
	Origin     string
	Agent      string
	CrawlDelay time.Duration
	Sitemaps   []string
	FetchedAt  time.Time
	ExpiresAt  time.Time
	// Permissive is set when no usable robots.txt was found.
	Permissive bool

	group *robotstxt.Group
}

// Allows reports whether path (with optional query) may be fetched.
func (p *Policy) Allows(path string) bool {
	if p == nil || p.Permissive || p.group == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return p.group.Test(path)
}

func (p *Policy) expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Cache resolves robots policies keyed by origin and agent. Entries expire
// lazily on access; there is no background sweeper.
type Cache struct {
	ttl     time.Duration
	client  *http.Client
	clock   Clock
	logger  *zap.Logger
	flights singleflight.Group

	mu      sync.Mutex
	entries map[string]*Policy
}

// New builds a Cache.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		ttl:     cfg.TTL,
		client:  client,
		clock:   clock,
		logger:  logger,
		entries: make(map[string]*Policy),
	}
}

// Get returns the cached policy for rawURL's origin, fetching it on a miss or
// after expiry. It never fails: unreachable or missing policies resolve to a
// permissive Policy.
func (c *Cache) Get(ctx context.Context, rawURL, agent string) *Policy {
	origin, err := canon.OriginOf(rawURL)
	if err != nil {
		return &Policy{Agent: agent, Permissive: true}
	}
	key := origin + ":" + agent

	c.mu.Lock()
	if p, ok := c.entries[key]; ok && !p.expired(c.clock.Now()) {
		c.mu.Unlock()
		metrics.ObserveRobotsCache(true)
		return p
	}
	c.mu.Unlock()
	metrics.ObserveRobotsCache(false)

	v, _, _ := c.flights.Do(key, func() (any, error) {
		p := c.fetch(ctx, origin, agent)
		if ctx.Err() != nil && p.Permissive {
			// the caller gave up; let the next caller try again
			return p, nil
		}
		c.mu.Lock()
		c.entries[key] = p
		c.mu.Unlock()
		return p, nil
	})
	return v.(*Policy) //nolint:forcetypeassert // the flight only returns *Policy
}

// IsAllowed reports whether agent may fetch rawURL.
func (c *Cache) IsAllowed(ctx context.Context, rawURL, agent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return c.Get(ctx, rawURL, agent).Allows(target)
}

// CrawlDelay returns the Crawl-delay declared for agent, or zero.
func (c *Cache) CrawlDelay(ctx context.Context, rawURL, agent string) time.Duration {
	return c.Get(ctx, rawURL, agent).CrawlDelay
}

// Sitemaps returns the Sitemap URLs declared by the origin's robots.txt.
func (c *Cache) Sitemaps(ctx context.Context, rawURL, agent string) []string {
	return append([]string(nil), c.Get(ctx, rawURL, agent).Sitemaps...)
}

func (c *Cache) fetch(ctx context.Context, origin, agent string) *Policy {
	now := c.clock.Now()
	policy := &Policy{
		Origin:     origin,
		Agent:      agent,
		FetchedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
		Permissive: true,
	}
	data, err := c.download(ctx, origin, agent)
	if errors.Is(err, errNoRobots) {
		c.logger.Debug("no robots policy; allowing access", zap.String("origin", origin), zap.Error(err))
		return policy
	}
	if err != nil {
		c.logger.Warn("robots fetch failed; allowing access", zap.String("origin", origin), zap.Error(err))
		return policy
	}
	group := data.FindGroup(agent)
	policy.Permissive = false
	policy.group = group
	if group != nil {
		policy.CrawlDelay = group.CrawlDelay
	}
	policy.Sitemaps = append([]string(nil), data.Sitemaps...)
	return policy
}

// download returns errNoRobots when the origin answers with a non-2xx status.
func (c *Cache) download(ctx context.Context, origin, agent string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", errNoRobots, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}
