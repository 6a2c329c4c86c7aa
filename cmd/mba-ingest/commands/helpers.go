package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hma-data/mba-ingest/internal/audit"
	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/internal/dedup"
	"github.com/hma-data/mba-ingest/internal/objstore"
	"github.com/hma-data/mba-ingest/internal/queue"
	"github.com/hma-data/mba-ingest/internal/uploader"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// signalContext derives a context cancelled by SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newStore(cfg config.Config) objstore.Client {
	store, err := objstore.New(*cfg.Store)
	if err != nil {
		logx.As().Fatal().Err(err).Msg("Failed to create object store client")
	}
	return store
}

func newDetector(cfg config.Config) *dedup.Detector {
	return dedup.NewDetector(cfg.Ingest.CacheFile, cfg.Ingest.HashAlgo)
}

// newRecorder returns the configured audit recorder. The caller owns Close.
func newRecorder(cfg config.Config) audit.Recorder {
	if !cfg.Audit.Enabled {
		return audit.Nop()
	}

	rec, err := audit.New(cfg.Audit.Directory)
	if err != nil {
		logx.As().Warn().Err(err).Msg("Could not open audit recorder, auditing disabled")
		return audit.Nop()
	}
	return rec
}

// concurrency resolves the worker pool size, flag over config.
func concurrency(cfg config.Config) int {
	if flagConcurrency > 0 {
		return flagConcurrency
	}
	return cfg.Ingest.Concurrency
}

func newUploader(cfg config.Config, store objstore.Client, detector *dedup.Detector, rec audit.Recorder, dryRun bool, overwrite bool) *uploader.Uploader {
	return uploader.New(store, detector, rec, uploader.Options{
		SkipDuplicates: cfg.Ingest.SkipDuplicates && !flagNoSkipDuplicates,
		Overwrite:      overwrite || cfg.Ingest.Overwrite,
		MaxRetries:     cfg.Store.MaxRetries,
		Concurrency:    concurrency(cfg),
		SSE:            cfg.Store.SSE,
		HashAlgo:       cfg.Ingest.HashAlgo,
		DryRun:         dryRun,
	})
}

// drainJobs empties the queue into a slice for direct batch processing.
func drainJobs(ctx context.Context, q *queue.Queue) []core.UploadJob {
	var jobs []core.UploadJob
	for {
		job, ok := q.Get(ctx, 10*time.Millisecond)
		if !ok {
			return jobs
		}
		jobs = append(jobs, job)
	}
}

// pollTimeout parses the configured worker poll timeout, falling back to
// one second.
func pollTimeout(cfg config.Config) time.Duration {
	d, err := time.ParseDuration(cfg.Queue.PollTimeout)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

func exitOnFailures(stats core.BatchStats) {
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
