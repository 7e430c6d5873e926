package crawler

import (
	"sync"

	"github.com/nao1215/harvester/internal/model"
)

// DefaultMaxQueueSize bounds the number of queued, unclaimed entries.
const DefaultMaxQueueSize = 10000

// Entry is a unit of work in the frontier.
type Entry struct {
	// URL is the canonical URL to fetch.
	URL string

	// Depth is the number of hops from the seed.
	Depth int

	// Hint is the kind implied by the referencing tag, or KindUnknown.
	Hint model.ContentKind

	// Referrer is the page that linked to URL.
	Referrer string
}

// PushResult tells what Push did with an entry.
type PushResult int

const (
	// Queued means the entry was added.
	Queued PushResult = iota
	// Duplicate means the URL was already queued or claimed.
	Duplicate
	// TooDeep means the entry is beyond the depth limit.
	TooDeep
	// QueueFull means the queue size cap was reached.
	QueueFull
	// Closed means the frontier no longer accepts work.
	Closed
)

// Frontier is the breadth-first work queue and visited set of a session.
//
// Every method takes the same mutex, which makes the claim of an entry and
// its insertion in the visited set one atomic step: two workers can never
// claim the same canonical URL.
//
// Per URL the states are Unseen, Queued (Push), Claimed (Claim) and Done
// (Complete). Claim blocks while the queue is empty but other workers are
// still processing entries, because they may discover more work.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue []Entry
	head  int

	// seen holds URLs that were queued or claimed.
	seen map[string]struct{}

	// visited holds URLs dispatched to a fetch.
	visited map[string]struct{}

	maxDepth int
	maxPages int
	maxQueue int

	claimed  int
	inFlight int
	dropped  int
	closed   bool
}

// NewFrontier creates a frontier. maxPages caps the number of claims;
// zero means unlimited. maxQueue caps queued entries; zero means unlimited.
func NewFrontier(maxDepth, maxPages, maxQueue int) *Frontier {
	f := &Frontier{
		seen:     make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		maxDepth: maxDepth,
		maxPages: maxPages,
		maxQueue: maxQueue,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push queues e unless its URL was seen before, it is deeper than the
// depth limit or the queue is full.
func (f *Frontier) Push(e Entry) PushResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return Closed
	}
	if e.Depth > f.maxDepth {
		return TooDeep
	}
	if _, ok := f.seen[e.URL]; ok {
		return Duplicate
	}
	if f.maxQueue > 0 && len(f.queue)-f.head >= f.maxQueue {
		f.dropped++
		return QueueFull
	}

	f.seen[e.URL] = struct{}{}
	f.queue = append(f.queue, e)
	f.cond.Signal()
	return Queued
}

// Claim removes the oldest entry and marks its URL visited in one step.
// It returns false when the crawl is over: the queue is drained and no
// claimed entry is still being processed, the page budget is spent, or the
// frontier was closed.
func (f *Frontier) Claim() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return Entry{}, false
		}
		if f.maxPages > 0 && f.claimed >= f.maxPages {
			return Entry{}, false
		}

		if e, ok := f.pop(); ok {
			if e.Depth > f.maxDepth {
				continue
			}
			if _, done := f.visited[e.URL]; done {
				// claimed through a redirect while it was queued
				continue
			}
			f.visited[e.URL] = struct{}{}
			f.claimed++
			f.inFlight++
			return e, true
		}

		if f.inFlight == 0 {
			return Entry{}, false
		}
		f.cond.Wait()
	}
}

// pop dequeues the oldest entry. Callers hold the mutex.
func (f *Frontier) pop() (Entry, bool) {
	if f.head >= len(f.queue) {
		return Entry{}, false
	}
	e := f.queue[f.head]
	f.queue[f.head] = Entry{}
	f.head++

	// reclaim the consumed prefix once it dominates the slice
	if f.head > 1024 && f.head*2 >= len(f.queue) {
		f.queue = append([]Entry(nil), f.queue[f.head:]...)
		f.head = 0
	}
	return e, true
}

// Complete marks one claimed entry as done.
func (f *Frontier) Complete() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		f.inFlight--
	}
	f.cond.Broadcast()
}

// MarkVisited records a URL reached through a redirect. It returns false if
// the URL was already claimed, in which case the caller must not process it
// a second time.
func (f *Frontier) MarkVisited(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[u]; ok {
		return false
	}
	f.visited[u] = struct{}{}
	f.seen[u] = struct{}{}
	return true
}

// IsVisited reports whether u was claimed or marked visited.
func (f *Frontier) IsVisited(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.visited[u]
	return ok
}

// Close stops the frontier: pending and future Claim calls return false.
// It is safe to call more than once.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.cond.Broadcast()
}

// FrontierStats is a snapshot of the frontier counters.
type FrontierStats struct {
	// Queued is the number of entries waiting to be claimed.
	Queued int

	// Claimed is the number of successful claims.
	Claimed int

	// Visited is the size of the visited set, including redirect targets.
	Visited int

	// InFlight is the number of claimed entries not yet completed.
	InFlight int

	// Dropped is the number of entries rejected because the queue was full.
	Dropped int
}

// Stats returns the current counters.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return FrontierStats{
		Queued:   len(f.queue) - f.head,
		Claimed:  f.claimed,
		Visited:  len(f.visited),
		InFlight: f.inFlight,
		Dropped:  f.dropped,
	}
}
