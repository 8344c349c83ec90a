// Package ratelimit spaces requests to the same origin by a politeness delay.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/seo-crawler/internal/metrics"
)

// Limiter manages one token bucket per origin. Each bucket holds a single
// token, so consecutive requests to an origin are at least delay apart.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*originLimiter
}

type originLimiter struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{limiters: make(map[string]*originLimiter)}
}

// Wait blocks until the origin may be requested again. The spacing only ever
// grows for an origin: a larger delay replaces the current one, a smaller
// one is ignored.
func (l *Limiter) Wait(ctx context.Context, origin string, delay time.Duration) error {
	limiter := l.limiterFor(origin, delay)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(origin, waited)
	}
	return nil
}

// Delay reports the spacing currently enforced for origin.
func (l *Limiter) Delay(origin string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ol, ok := l.limiters[origin]; ok {
		return ol.delay
	}
	return 0
}

func (l *Limiter) limiterFor(origin string, delay time.Duration) *rate.Limiter {
	if delay < 0 {
		delay = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ol, ok := l.limiters[origin]
	if !ok {
		ol = &originLimiter{limiter: rate.NewLimiter(limitFor(delay), 1), delay: delay}
		l.limiters[origin] = ol
		return ol.limiter
	}
	if delay > ol.delay {
		ol.delay = delay
		ol.limiter.SetLimit(limitFor(delay))
	}
	return ol.limiter
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}
