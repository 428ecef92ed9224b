package engine

import (
	"sync"

	"github.com/roach88/punchcard/internal/ir"
)

// result is what a shard loop reports back to a waiting Submit.
type result struct {
	conf ir.Confirmation
	err  error
}

// job is one verified payload waiting to be applied.
type job struct {
	payload   ir.SignedPayload
	payloadID string
	// reply is buffered (size 1) so the shard loop never blocks on a caller
	// that stopped waiting.
	reply chan result
}

// jobQueue is a thread-safe FIFO queue for jobs, one per shard.
//
// The queue is unbounded; Submit never blocks on enqueue.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the shard loop (prevents goroutine hangs on context cancellation).
type jobQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{} // Signals job availability (buffered, size 1)
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *jobQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, j)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front job without blocking.
func (q *jobQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}

	j := q.jobs[0]
	// Clear the slot so the backing array does not pin the payload.
	q.jobs[0] = job{}
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Wait returns a channel that signals when jobs may be available.
// It is closed by Close.
func (q *jobQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting jobs and returns whatever was still queued.
func (q *jobQueue) Close() []job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)

	rest := q.jobs
	q.jobs = nil
	return rest
}
