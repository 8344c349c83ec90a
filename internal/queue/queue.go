// Package queue defines the hand-off between job submission and the workers
// that run crawls.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// ErrClosed is returned once a queue has been shut down and drained.
var ErrClosed = errors.New("queue closed")

// Item is one accepted crawl waiting for a worker.
type Item struct {
	Job        crawler.CrawlJob
	EnqueuedAt time.Time
}

// Queue moves accepted jobs to workers.
type Queue interface {
	// Enqueue blocks until the item is accepted, ctx ends, or the queue closes.
	Enqueue(ctx context.Context, item Item) error
	// Dequeue blocks for the next item. Items accepted before Close are still
	// delivered; afterwards ErrClosed is returned.
	Dequeue(ctx context.Context) (Item, error)
	Close()
}
