package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hma-data/mba-ingest/internal/core"
)

func TestQueueFIFO(t *testing.T) {
	q := New()
	q.Put(core.NewUploadJob("/data/a.csv", "mba", "b", "k/a"))
	q.Put(core.NewUploadJob("/data/b.csv", "mba", "b", "k/b"))
	q.Put(core.NewUploadJob("/data/c.csv", "mba", "b", "k/c"))
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []string{"/data/a.csv", "/data/b.csv", "/data/c.csv"} {
		job, ok := q.Get(ctx, time.Second)
		require.True(t, ok)
		assert.Equal(t, want, job.Path)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueGetTimeout(t *testing.T) {
	q := New()
	start := time.Now()
	_, ok := q.Get(context.Background(), 50*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestQueueGetCancellation(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(ctx, time.Minute)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancellation")
	}
}

func TestQueueGetWakesOnPut(t *testing.T) {
	q := New()

	done := make(chan core.UploadJob, 1)
	go func() {
		job, ok := q.Get(context.Background(), 5*time.Second)
		if ok {
			done <- job
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(core.NewUploadJob("/data/late.csv", "mba", "b", "k"))

	select {
	case job := <-done:
		assert.Equal(t, "/data/late.csv", job.Path)
	case <-time.After(time.Second):
		t.Fatal("waiting Get never woke up")
	}
}

func TestQueueCounterInvariant(t *testing.T) {
	q := New()
	const jobs = 50
	const workers = 4

	for i := 0; i < jobs; i++ {
		q.Put(core.NewUploadJob("/data/f.csv", "mba", "b", "k"))
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				_, ok := q.Get(context.Background(), 100*time.Millisecond)
				if !ok {
					return
				}
				if id%2 == 0 {
					q.Done()
				} else {
					q.MarkFailed()
				}
			}
		}(i)
	}
	wg.Wait()

	stats := q.Stats()
	assert.Equal(t, jobs, stats.Total)
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, stats.Total, stats.Processed+stats.Failed+stats.Queued)
}

func TestQueueStatsSnapshot(t *testing.T) {
	q := New()
	q.Put(core.NewUploadJob("/data/a.csv", "mba", "b", "k/a"))
	q.Put(core.NewUploadJob("/data/b.csv", "mba", "b", "k/b"))

	_, ok := q.Get(context.Background(), time.Second)
	require.True(t, ok)
	q.Done()

	_, ok = q.Get(context.Background(), time.Second)
	require.True(t, ok)
	q.MarkFailed()

	stats := q.Stats()
	assert.Equal(t, core.QueueStats{Queued: 0, Processed: 1, Failed: 1, Total: 2}, stats)
}
