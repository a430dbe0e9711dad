package scanner

import "sync"

// Frontier is the shared crawl work queue: a FIFO of pending page tasks
// plus the set of URLs ever enqueued. FIFO order gives breadth-first
// discovery, so shallow pages are processed before deep ones when the
// page ceiling cuts a crawl short.
//
// All mutations happen under one mutex so the visited check and the
// queue append are a single atomic step: two workers racing to enqueue
// the same normalized URL can never both create a task.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending  []PageTask
	visited  map[string]struct{}
	inflight int
	created  int
	skipped  int
	stopped  bool

	maxDepth int
	maxPages int
}

// NewFrontier creates a Frontier bounded by maxDepth and maxPages.
func NewFrontier(maxDepth, maxPages int) *Frontier {
	f := &Frontier{
		visited:  make(map[string]struct{}),
		maxDepth: maxDepth,
		maxPages: maxPages,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Enqueue creates a task for url at depth, discovered by parent.
// It returns false without creating a task when the frontier is stopped,
// the URL was already seen, or a depth/page bound applies. Inserting
// into the visited set and appending to the queue happen atomically.
func (f *Frontier) Enqueue(url string, depth int, parent string) bool {
	if url == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return false
	}
	if _, seen := f.visited[url]; seen {
		return false
	}
	if depth > f.maxDepth {
		f.skipped++
		return false
	}
	if f.created >= f.maxPages {
		f.skipped++
		return false
	}

	f.visited[url] = struct{}{}
	f.created++
	f.pending = append(f.pending, PageTask{URL: url, Depth: depth, Parent: parent})
	f.cond.Signal()
	return true
}

// Dequeue returns the next pending task, blocking while the queue is
// empty but some worker is still mid-task and could enqueue more. It
// returns ok=false once the frontier is quiescent (nothing pending,
// nothing in flight) or stopped: that is the crawl-termination signal,
// and every blocked caller observes it.
//
// Each successful Dequeue must be paired with a Done call.
func (f *Frontier) Dequeue() (PageTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if len(f.pending) > 0 {
			task := f.pending[0]
			f.pending = f.pending[1:]
			f.inflight++
			return task, true
		}
		if f.stopped || f.inflight == 0 {
			return PageTask{}, false
		}
		f.cond.Wait()
	}
}

// Done marks a previously dequeued task complete. The caller must have
// finished every Enqueue attempt for links discovered by that task.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inflight--
	if f.inflight <= 0 && len(f.pending) == 0 {
		f.cond.Broadcast()
	}
}

// Stop cancels the crawl: pending tasks are discarded, no new enqueue
// succeeds, and workers finish only their current in-flight task.
func (f *Frontier) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return
	}
	f.stopped = true
	f.skipped += len(f.pending)
	f.pending = nil
	f.cond.Broadcast()
}

// Created returns the number of tasks ever created.
func (f *Frontier) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Skipped returns the number of in-scope links dropped because a depth
// or page bound applied (or because the crawl was stopped).
func (f *Frontier) Skipped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped
}

// VisitedCount returns the cardinality of the visited set.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
