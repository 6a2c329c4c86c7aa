// Package queue decouples job production from upload execution with an
// unbounded in-memory FIFO and outcome counters.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// Queue is an unbounded FIFO of upload jobs, safe for concurrent producers
// and workers. For every dequeued job the worker must call exactly one of
// Done or MarkFailed; the counters assume that contract.
type Queue struct {
	mu        sync.Mutex
	jobs      []core.UploadJob
	signal    chan struct{}
	enqueued  int
	processed int
	failed    int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Put enqueues a job. Put never blocks.
func (q *Queue) Put(job core.UploadJob) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.enqueued++
	q.mu.Unlock()

	q.wake()

	logx.As().Debug().
		Str("job", job.String()).
		Msg("Job queued")
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Get dequeues the oldest job, waiting up to timeout for one to arrive.
// It returns false when the timeout elapses or ctx is cancelled with the
// queue still empty.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (core.UploadJob, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			remaining := len(q.jobs)
			q.mu.Unlock()

			// pass the wakeup along so sibling workers see remaining jobs
			if remaining > 0 {
				q.wake()
			}
			return job, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-deadline.C:
			return core.UploadJob{}, false
		case <-ctx.Done():
			return core.UploadJob{}, false
		}
	}
}

// Done records a successfully processed job.
func (q *Queue) Done() {
	q.mu.Lock()
	q.processed++
	q.mu.Unlock()
}

// MarkFailed records a failed job.
func (q *Queue) MarkFailed() {
	q.mu.Lock()
	q.failed++
	q.mu.Unlock()
}

// Len returns the number of jobs currently waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// IsEmpty reports whether no jobs are waiting.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Stats returns a consistent counter snapshot. Once every dequeued job has
// been reported, Processed+Failed+Queued equals Total.
func (q *Queue) Stats() core.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return core.QueueStats{
		Queued:    len(q.jobs),
		Processed: q.processed,
		Failed:    q.failed,
		Total:     q.enqueued,
	}
}
