// Package uploader transfers files to the object store, with duplicate
// skipping, a bounded retry loop for transient failures and per-file audit
// records.
package uploader

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hma-data/mba-ingest/internal/audit"
	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/internal/dedup"
	"github.com/hma-data/mba-ingest/internal/objstore"
	"github.com/hma-data/mba-ingest/pkg/fsx"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// Options controls upload behavior.
type Options struct {
	// SkipDuplicates enables the remote existence check before each PUT.
	SkipDuplicates bool
	// Overwrite allows replacing an existing object whose size differs.
	Overwrite bool
	// MaxRetries bounds attempts for transient failures. Defaults to 3.
	MaxRetries int
	// Concurrency bounds the batch worker pool. Defaults to 4.
	Concurrency int
	// SSE is the server-side encryption type passed through to the store.
	SSE string
	// HashAlgo selects the digest attached as object metadata. Defaults to md5.
	HashAlgo string
	// DryRun logs what would be uploaded without performing any PUT.
	DryRun bool
}

// Uploader performs single-file and batch uploads.
type Uploader struct {
	store    objstore.Client
	detector *dedup.Detector
	rec      audit.Recorder
	opts     Options

	// sleep is the backoff delay hook, replaceable in tests.
	sleep func(ctx context.Context, delay time.Duration)
}

// New creates an Uploader. detector may be nil when duplicate skipping is
// disabled; rec may be nil to disable auditing.
func New(store objstore.Client, detector *dedup.Detector, rec audit.Recorder, opts Options) *Uploader {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.HashAlgo == "" {
		opts.HashAlgo = fsx.AlgoMD5
	}
	if rec == nil {
		rec = audit.Nop()
	}

	return &Uploader{
		store:    store,
		detector: detector,
		rec:      rec,
		opts:     opts,
		sleep:    core.ApplyDelay,
	}
}

// UploadOne processes a single job: duplicate check, then a retried PUT.
// The outcome is always a classified UploadResult; errors never escape as
// bare messages.
func (u *Uploader) UploadOne(ctx context.Context, job core.UploadJob) core.UploadResult {
	startedAt := time.Now()

	info, err := os.Stat(job.Path)
	if err != nil {
		return u.finish(job, startedAt, "", 0, core.UploadResult{
			Path:   job.Path,
			Status: core.StatusFailed,
			Detail: fmt.Sprintf("cannot stat file: %v", err),
		})
	}

	// overwrite mode uploads unconditionally, so the remote check would
	// only burn a HEAD per file
	if u.opts.SkipDuplicates && !u.opts.Overwrite && u.detector != nil {
		dup, md := u.detector.CheckRemoteDuplicate(ctx, u.store, job.Path, job.Bucket, job.Key)
		if dup {
			return u.finish(job, startedAt, "", 0, core.UploadResult{
				Path:   job.Path,
				Status: core.StatusSkippedDuplicate,
				Detail: fmt.Sprintf("object %s/%s already exists with equal size", job.Bucket, job.Key),
			})
		}
		if md != nil {
			return u.finish(job, startedAt, "", 0, core.UploadResult{
				Path:   job.Path,
				Status: core.StatusSkippedSizeConflict,
				Detail: fmt.Sprintf("object %s/%s exists with size %d, local size %d; refusing to overwrite", job.Bucket, job.Key, md.Size, info.Size()),
			})
		}
	}

	digest := ""
	if !u.opts.DryRun {
		digest, err = fsx.FileDigest(job.Path, u.opts.HashAlgo)
		if err != nil {
			return u.finish(job, startedAt, "", 0, core.UploadResult{
				Path:   job.Path,
				Status: core.StatusFailed,
				Detail: fmt.Sprintf("cannot hash file: %v", err),
			})
		}
	}

	if u.opts.DryRun {
		logx.As().Info().
			Str("path", job.Path).
			Str("bucket", job.Bucket).
			Str("key", job.Key).
			Msg("Dry run, skipping upload")
		return core.UploadResult{
			Path:   job.Path,
			Status: core.StatusUploaded,
			Detail: fmt.Sprintf("dry run: would upload to %s/%s", job.Bucket, job.Key),
		}
	}

	putOpts := objstore.PutOptions{
		ContentType: contentType(job.Path),
		SSE:         u.opts.SSE,
		UserMetadata: map[string]string{
			"original-filename": filepath.Base(job.Path),
			"local-hash":        digest,
			"upload-timestamp":  strconv.FormatInt(time.Now().Unix(), 10),
		},
	}

	retries := 0
	var lastErr error
	for attempt := 1; attempt <= u.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		putErr := u.store.Put(ctx, job.Path, job.Bucket, job.Key, putOpts)
		if putErr == nil {
			return u.finish(job, startedAt, digest, retries, core.UploadResult{
				Path:   job.Path,
				Status: core.StatusUploaded,
				Detail: fmt.Sprintf("uploaded to %s/%s", job.Bucket, job.Key),
			})
		}
		lastErr = putErr

		if !core.Retryable(lastErr) {
			logx.As().Error().
				Str("path", job.Path).
				Str("class", core.ClassOf(lastErr).String()).
				Err(lastErr).
				Msg("Upload failed with non-recoverable error")
			break
		}

		if attempt < u.opts.MaxRetries {
			delay := time.Duration(1<<attempt) * time.Second
			logx.As().Warn().
				Str("path", job.Path).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Transient upload failure, retrying")
			u.sleep(ctx, delay)
			retries++
		}
	}

	return u.finish(job, startedAt, digest, retries, core.UploadResult{
		Path:   job.Path,
		Status: core.StatusFailed,
		Detail: fmt.Sprintf("upload to %s/%s failed: %v", job.Bucket, job.Key, lastErr),
	})
}

// finish writes the audit record for a completed job and passes the result
// through.
func (u *Uploader) finish(job core.UploadJob, startedAt time.Time, digest string, retries int, result core.UploadResult) core.UploadResult {
	finishedAt := time.Now()

	outcome := audit.OutcomeFailed
	switch result.Status {
	case core.StatusUploaded:
		outcome = audit.OutcomeSuccess
	case core.StatusSkippedDuplicate, core.StatusSkippedSizeConflict:
		outcome = audit.OutcomeSkipped
	}

	var bytes int64
	if info, err := os.Stat(job.Path); err == nil {
		bytes = info.Size()
	}

	errDetail := ""
	if result.Status == core.StatusFailed {
		errDetail = result.Detail
	}

	u.rec.Write(audit.Record{
		ID:         job.ID,
		Path:       job.Path,
		Bucket:     job.Bucket,
		Key:        job.Key,
		Digest:     digest,
		Bytes:      bytes,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		DurationMS: finishedAt.Sub(startedAt).Milliseconds(),
		Outcome:    outcome,
		Error:      errDetail,
		Retries:    retries,
	})

	return result
}

// UploadBatch uploads jobs through a bounded worker pool and aggregates
// results. Result order follows completion, not submission.
func (u *Uploader) UploadBatch(ctx context.Context, jobs []core.UploadJob) core.BatchStats {
	stats := core.BatchStats{Total: len(jobs)}
	if len(jobs) == 0 {
		return stats
	}

	logx.StartTimer()

	jobCh := make(chan core.UploadJob)
	resultCh := make(chan core.UploadResult)

	var wg sync.WaitGroup
	for i := 0; i < u.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				resultCh <- u.UploadOne(ctx, job)
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		stats.Results = append(stats.Results, result)
		switch result.Status {
		case core.StatusUploaded:
			stats.Uploaded++
		case core.StatusSkippedDuplicate:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	logx.As().Info().
		Int("total", stats.Total).
		Int("uploaded", stats.Uploaded).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Float64("success_rate", stats.SuccessRate()).
		Str("duration", logx.ExecutionTime()).
		Msg("Batch upload complete")

	return stats
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
