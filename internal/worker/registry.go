package worker

import (
	"sync"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// Registry tracks the runs owned by workers so cancellation requests reach
// them. Jobs canceled before a worker picks them up are remembered and
// skipped on dequeue.
type Registry struct {
	mu      sync.Mutex
	running map[string]*crawler.Run
	pending map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		running: make(map[string]*crawler.Run),
		pending: make(map[string]struct{}),
	}
}

// Cancel stops the job if it is running, otherwise marks it so the worker
// drops it. It reports whether the job was running.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	run, ok := r.running[jobID]
	if !ok {
		r.pending[jobID] = struct{}{}
	}
	r.mu.Unlock()
	if ok {
		run.Cancel()
	}
	return ok
}

// Forget drops a cancel request recorded for a job that turned out to be
// finished already.
func (r *Registry) Forget(jobID string) {
	r.mu.Lock()
	delete(r.pending, jobID)
	r.mu.Unlock()
}

// Pending reports how many cancel requests wait for a job to be dequeued.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Running reports how many runs are in flight.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// takePending clears and reports a cancel request for a job not yet started.
func (r *Registry) takePending(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[jobID]; ok {
		delete(r.pending, jobID)
		return true
	}
	return false
}

// track registers run. A cancel that raced with the start is applied now.
func (r *Registry) track(run *crawler.Run) {
	r.mu.Lock()
	_, canceled := r.pending[run.JobID()]
	delete(r.pending, run.JobID())
	r.running[run.JobID()] = run
	r.mu.Unlock()
	if canceled {
		run.Cancel()
	}
}

func (r *Registry) untrack(jobID string) {
	r.mu.Lock()
	delete(r.running, jobID)
	r.mu.Unlock()
}
