package crawler

// task is one URL scheduled for fetching.
type task struct {
	url   string
	depth int
}

// frontier is the pending FIFO plus the processed set. A URL is in at most
// one of the two. It is owned by the coordinating goroutine.
type frontier struct {
	pending   []task
	queued    map[string]struct{}
	processed map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{
		queued:    make(map[string]struct{}),
		processed: make(map[string]struct{}),
	}
}

// enqueue adds url unless it has been seen. It reports whether it was added.
func (f *frontier) enqueue(url string, depth int) bool {
	if f.seen(url) {
		return false
	}
	f.queued[url] = struct{}{}
	f.pending = append(f.pending, task{url: url, depth: depth})
	return true
}

func (f *frontier) seen(url string) bool {
	if _, ok := f.queued[url]; ok {
		return true
	}
	_, ok := f.processed[url]
	return ok
}

// take moves up to n tasks from pending to processed, oldest first.
func (f *frontier) take(n int) []task {
	if n > len(f.pending) {
		n = len(f.pending)
	}
	if n <= 0 {
		return nil
	}
	batch := make([]task, n)
	copy(batch, f.pending[:n])
	f.pending = f.pending[n:]
	for _, t := range batch {
		delete(f.queued, t.url)
		f.processed[t.url] = struct{}{}
	}
	return batch
}

func (f *frontier) pendingLen() int   { return len(f.pending) }
func (f *frontier) processedLen() int { return len(f.processed) }
