package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RobotsPolicy answers robots.txt questions for a URL and user agent.
// Implementations never fail; unreachable policies are permissive.
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, rawURL, agent string) bool
	CrawlDelay(ctx context.Context, rawURL, agent string) time.Duration
	Sitemaps(ctx context.Context, rawURL, agent string) []string
}

// OriginLimiter spaces requests to the same origin.
type OriginLimiter interface {
	Wait(ctx context.Context, origin string, delay time.Duration) error
}

// SitemapReader lists the page URLs declared by a sitemap.
type SitemapReader interface {
	Read(ctx context.Context, sitemapURL, userAgent string) ([]string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes digests for archive keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// EventSink receives lifecycle events. Emit is called synchronously from the
// job's coordinating goroutine and must not block for long.
type EventSink interface {
	Emit(event Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event Event)

// Emit calls f(event).
func (f EventSinkFunc) Emit(event Event) { f(event) }
