package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType names a lifecycle event.
type EventType string

// Lifecycle events, in the order a job produces them.
const (
	EventCrawlStarted  EventType = "crawl-started"
	EventPageCrawled   EventType = "page-crawled"
	EventCrawlProgress EventType = "crawl-progress"
	EventCrawlError    EventType = "crawl-error"
	EventCrawlFinished EventType = "crawl-finished"
)

// Event is one lifecycle notification. Exactly one payload field is set,
// except for crawl-started which carries none.
type Event struct {
	Type     EventType      `json:"type"`
	JobID    string         `json:"jobId"`
	TS       time.Time      `json:"ts"`
	Page     *CrawledPage   `json:"page,omitempty"`
	Progress *CrawlProgress `json:"progress,omitempty"`
	Error    *CrawlError    `json:"error,omitempty"`
	Result   *CrawlResult   `json:"result,omitempty"`
}

// Run is the handle of a started job.
type Run struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
	result CrawlResult

	mu     sync.Mutex
	buf    []Event
	closed bool
	notify chan struct{}

	eventsOnce sync.Once
	events     chan Event
}

func newRun(jobID string, cancel context.CancelFunc) *Run {
	return &Run{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
		notify: make(chan struct{}, 1),
	}
}

// JobID returns the job identifier.
func (r *Run) JobID() string { return r.jobID }

// Cancel stops the job. The Run still resolves to a result.
func (r *Run) Cancel() { r.cancel() }

// Done is closed once the result is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the job finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (CrawlResult, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return CrawlResult{}, fmt.Errorf("wait for crawl %s: %w", r.jobID, ctx.Err())
	}
}

// Events returns the job's event stream. Events are buffered without bound
// so the engine never blocks on a slow reader; the channel is closed after
// crawl-finished has been delivered.
func (r *Run) Events() <-chan Event {
	r.eventsOnce.Do(func() {
		r.events = make(chan Event)
		go r.pump()
	})
	return r.events
}

func (r *Run) push(ev Event) {
	r.mu.Lock()
	r.buf = append(r.buf, ev)
	r.mu.Unlock()
	r.signal()
}

func (r *Run) closeEvents() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.signal()
}

func (r *Run) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Run) pump() {
	for {
		r.mu.Lock()
		batch := r.buf
		r.buf = nil
		closed := r.closed
		r.mu.Unlock()

		for _, ev := range batch {
			r.events <- ev
		}
		if len(batch) == 0 {
			if closed {
				close(r.events)
				return
			}
			<-r.notify
		}
	}
}

// emitter stamps events and fans them out to the sinks and the Run.
type emitter struct {
	jobID  string
	clock  Clock
	sinks  []EventSink
	run    *Run
	logger *zap.Logger
}

func (e *emitter) emit(ev Event) {
	ev.JobID = e.jobID
	if ev.TS.IsZero() {
		ev.TS = e.clock.Now()
	}
	for _, sink := range e.sinks {
		e.deliver(sink, ev)
	}
	e.run.push(ev)
}

func (e *emitter) deliver(sink EventSink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event sink panicked",
				zap.String("job_id", e.jobID),
				zap.String("event", string(ev.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	sink.Emit(ev)
}
