package queue

import (
	"context"
	"sync"
	"time"

	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// JobProcessor handles one dequeued job. The uploader satisfies this.
type JobProcessor interface {
	UploadOne(ctx context.Context, job core.UploadJob) core.UploadResult
}

// Worker drains upload jobs from a queue. Every dequeued job is reported to
// the queue exactly once, as either Done or MarkFailed.
type Worker struct {
	queue       *Queue
	processor   JobProcessor
	pollTimeout time.Duration
	drainOnce   bool
}

// NewWorker creates a worker. With drainOnce set the worker exits on the
// first empty poll, which suits batch runs; long-lived workers keep polling
// until ctx is cancelled.
func NewWorker(q *Queue, processor JobProcessor, pollTimeout time.Duration, drainOnce bool) *Worker {
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &Worker{
		queue:       q,
		processor:   processor,
		pollTimeout: pollTimeout,
		drainOnce:   drainOnce,
	}
}

// Run processes jobs until ctx is cancelled or, in drain-once mode, until
// the queue is observed empty.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, ok := w.queue.Get(ctx, w.pollTimeout)
		if !ok {
			if ctx.Err() != nil {
				logx.As().Info().Msg("Worker stopping, context cancelled")
				return
			}
			if w.drainOnce {
				logx.As().Info().Msg("Worker stopping, queue drained")
				return
			}
			continue
		}

		result := w.processor.UploadOne(ctx, job)
		if result.Succeeded() {
			w.queue.Done()
		} else {
			w.queue.MarkFailed()
			logx.As().Warn().
				Str("job", job.String()).
				Str("status", result.Status.String()).
				Str("detail", result.Detail).
				Msg("Job failed")
		}
	}
}

// RunWorkers fans out n workers over q and blocks until all of them stop.
func RunWorkers(ctx context.Context, q *Queue, processor JobProcessor, n int, pollTimeout time.Duration, drainOnce bool) {
	if n <= 0 {
		n = 1
	}

	logx.As().Info().
		Int("workers", n).
		Bool("drain_once", drainOnce).
		Msg("Starting workers")

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			NewWorker(q, processor, pollTimeout, drainOnce).Run(ctx)
		}()
	}
	wg.Wait()
}
