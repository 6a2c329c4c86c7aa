package core

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ScopeMBA and ScopePolicy are the two logical partitions of the object
// store. Each scope maps to its own bucket and key prefix.
const (
	ScopeMBA    = "mba"
	ScopePolicy = "policy"
)

// FileRecord describes a discovered file. It is derived from the filesystem
// at discovery time and consumed immediately by duplicate checking and
// upload; it is never persisted beyond the hash cache.
type FileRecord struct {
	// Path is the absolute path of the file.
	Path string
	// Size is the file size in bytes.
	Size int64
	// ModTime is the file modification time.
	ModTime time.Time
	// Scope is the detected scope ("mba", "policy") or empty when undetected.
	Scope string
	// Category is the type category derived from the extension (e.g. "csv").
	Category string
}

// UploadJob carries everything a worker needs to upload one file. Jobs are
// immutable once constructed; outcomes are reported through queue counters
// and UploadResults, never by mutating the job.
type UploadJob struct {
	// ID uniquely identifies the job.
	ID string
	// Path is the local file path to upload.
	Path string
	// Scope is the data scope the job belongs to.
	Scope string
	// Bucket is the target bucket.
	Bucket string
	// Key is the target object key.
	Key string
}

// NewUploadJob constructs a job with a fresh ID.
func NewUploadJob(path, scope, bucket, key string) UploadJob {
	return UploadJob{
		ID:     uuid.NewString(),
		Path:   path,
		Scope:  scope,
		Bucket: bucket,
		Key:    key,
	}
}

func (j UploadJob) String() string {
	return fmt.Sprintf("Job(file=%s, bucket=%s, key=%s)", filepath.Base(j.Path), j.Bucket, j.Key)
}

// UploadStatus is the closed classification of a single-file upload outcome.
// Callers switch on the status, never on message substrings.
type UploadStatus int

const (
	// StatusUploaded means the file was transferred to the object store.
	StatusUploaded UploadStatus = iota
	// StatusSkippedDuplicate means an object of equal size already exists at
	// the key; no PUT was performed.
	StatusSkippedDuplicate
	// StatusSkippedSizeConflict means an object exists at the key with a
	// different size and overwrite was not enabled. This is a policy
	// refusal requiring operator decision, not a transient failure.
	StatusSkippedSizeConflict
	// StatusFailed means the upload failed after exhausting its retry
	// budget, or failed with a non-recoverable error.
	StatusFailed
)

func (s UploadStatus) String() string {
	switch s {
	case StatusUploaded:
		return "uploaded"
	case StatusSkippedDuplicate:
		return "skipped_duplicate"
	case StatusSkippedSizeConflict:
		return "skipped_size_conflict"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadResult reports the outcome of processing one file.
type UploadResult struct {
	// Path is the local file that was processed.
	Path string
	// Status is the classified outcome.
	Status UploadStatus
	// Detail is a human-readable elaboration (destination URI, skip reason,
	// or failure cause). It carries no information the Status does not.
	Detail string
}

// Succeeded reports whether the outcome counts toward batch success.
// Skipped duplicates are successes; size conflicts and failures are not.
func (r UploadResult) Succeeded() bool {
	return r.Status == StatusUploaded || r.Status == StatusSkippedDuplicate
}

// ObjectMetadata is the metadata snapshot returned by an existence check.
type ObjectMetadata struct {
	// Size is the object size in bytes.
	Size int64
	// LastModified is the object's last-modified time.
	LastModified time.Time
	// ETag is the object's entity tag with wrapping quotes stripped.
	ETag string
	// ContentType is the object's content type.
	ContentType string
	// UserMetadata holds the user-defined metadata attached at upload time
	// (original-filename, local-hash, upload-timestamp).
	UserMetadata map[string]string
}

// BatchStats aggregates the outcome of a batch upload.
type BatchStats struct {
	Total    int
	Uploaded int
	Skipped  int
	Failed   int
	Results  []UploadResult
}

// SuccessRate returns the percentage of files that uploaded or were skipped
// as duplicates. A zero-file batch has a 100% rate.
func (s BatchStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 100.0
	}
	return float64(s.Uploaded+s.Skipped) / float64(s.Total) * 100.0
}

// QueueStats is a consistent snapshot of job queue counters. The invariant
// Processed+Failed+Queued == Total holds for any snapshot taken after all
// dequeued jobs have been reported done or failed.
type QueueStats struct {
	Queued    int `json:"queued"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}
