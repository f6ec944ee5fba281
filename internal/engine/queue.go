package engine

import (
	"sync"

	"github.com/beatrizuezu/maria-quiteria/internal/scraper"
)

// queue is a thread-safe FIFO of pending requests feeding the worker pool
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*scraper.Request
	stopped bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push adds a request to the queue
// Returns false if the queue has been stopped
func (q *queue) push(request *scraper.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	q.items = append(q.items, request)
	q.cond.Signal()
	return true
}

// pop removes and returns the first request from the queue.
// Blocks while the queue is empty and not stopped.
// Returns (nil, false) once the queue is stopped.
func (q *queue) pop() (*scraper.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.stopped {
			return nil, false
		}

		if len(q.items) > 0 {
			request := q.items[0]
			q.items = q.items[1:]
			return request, true
		}

		q.cond.Wait()
	}
}

// size returns the current number of queued requests
func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// stop discards any queued requests and wakes blocked workers. After stop,
// pop returns false and push is rejected.
func (q *queue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.items = nil
	q.cond.Broadcast()
}
