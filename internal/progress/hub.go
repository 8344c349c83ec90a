package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// Config controls buffering and batching for the Hub. Zero fields take the
// defaults below.
type Config struct {
	// BufferSize is the capacity of the intake channel.
	BufferSize int
	// MaxBatchEvents flushes a batch as soon as it holds this many events.
	MaxBatchEvents int
	// MaxBatchWait is the longest an event waits in a partial batch.
	MaxBatchWait time.Duration
	// SinkTimeout bounds one Consume call.
	SinkTimeout time.Duration
	// BaseContext is the parent of every sink call.
	BaseContext context.Context
	Logger      *zap.Logger
}

const (
	defaultBufferSize     = 4096
	defaultMaxBatchEvents = 1000
	defaultMaxBatchWait   = 500 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
	dropLogInterval       = 5 * time.Second
)

// Hub collects events from every running job, batches them and delivers each
// batch to all sinks in parallel. Emit is safe for concurrent use.
type Hub struct {
	cfg     Config
	sinks   []Sink
	events  chan crawler.Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	dropLog rate.Sometimes
	dropped atomic.Int64
	closed  atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts the batching loop over sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	cfg = withHubDefaults(cfg)
	h := &Hub{
		cfg:     cfg,
		sinks:   compactSinks(sinks),
		events:  make(chan crawler.Event, cfg.BufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  cfg.Logger,
		dropLog: rate.Sometimes{Interval: dropLogInterval},
	}
	go h.loop()
	return h
}

func withHubDefaults(cfg Config) Config {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

func compactSinks(sinks []Sink) []Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Emit queues evt for the next batch. crawl-started and crawl-finished wait
// for buffer space; every other event is dropped when the buffer is full so
// a slow sink never stalls a crawl.
func (h *Hub) Emit(evt crawler.Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := Validate(evt); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	if isLifecycle(evt) {
		select {
		case h.events <- evt:
		case <-h.stopCh:
		}
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		h.dropLog.Do(func() {
			h.logger.Warn("progress events dropped due to backpressure",
				zap.Int64("dropped", h.dropped.Swap(0)))
		})
	}
}

// Close stops intake, flushes what is buffered, closes every sink and waits
// for all of it or for ctx. Later calls only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

// loop owns the pending batch. The flush deadline is armed by the first event
// of a batch, so no event waits longer than MaxBatchWait.
func (h *Hub) loop() {
	defer close(h.doneCh)

	batch := make([]crawler.Event, 0, h.cfg.MaxBatchEvents)
	var deadline <-chan time.Time
	flush := func() {
		h.deliver(batch)
		batch = batch[:0]
		deadline = nil
	}

	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
			if len(batch) == 1 {
				deadline = time.After(h.cfg.MaxBatchWait)
			}
			if len(batch) >= h.cfg.MaxBatchEvents {
				flush()
			}
		case <-deadline:
			flush()
		case <-h.stopCh:
			h.drain(batch)
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) drain(batch []crawler.Event) {
	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
			if len(batch) >= h.cfg.MaxBatchEvents {
				h.deliver(batch)
				batch = batch[:0]
			}
		default:
			h.deliver(batch)
			return
		}
	}
}

// deliver hands one batch to every sink concurrently and returns once all of
// them are done. Each sink sees batches in emission order.
func (h *Hub) deliver(batch []crawler.Event) {
	if len(batch) == 0 {
		return
	}
	shared := append([]crawler.Event(nil), batch...)
	var g errgroup.Group
	for _, sink := range h.sinks {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
			defer cancel()
			if err := sink.Consume(ctx, shared); err != nil {
				h.logger.Warn("progress sink consume failed",
					zap.String("sink", fmt.Sprintf("%T", sink)),
					zap.Int("batch", len(shared)),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed",
				zap.String("sink", fmt.Sprintf("%T", sink)),
				zap.Error(err),
			)
		}
	}
}
