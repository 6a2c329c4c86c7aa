// Package audit persists one JSONL record per upload attempt so transfers
// can be reconciled against the object store after the fact.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hma-data/mba-ingest/pkg/logx"
)

// Outcome of a recorded transfer.
const (
	OutcomeStarted = "STARTED"
	OutcomeSuccess = "SUCCESS"
	OutcomeFailed  = "FAILED"
	OutcomeSkipped = "SKIPPED"
)

// Record is one audit line.
type Record struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	Digest     string    `json:"digest,omitempty"`
	Bytes      int64     `json:"bytes"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DurationMS int64     `json:"durationMs"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Retries    int       `json:"retries"`
}

// Recorder accepts completed transfer records. Implementations must be safe
// for concurrent use; upload workers share one recorder.
type Recorder interface {
	Write(r Record)
	Close() error
}

type jsonlRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// New opens an append-only JSONL audit file under dir, one file per day.
func New(dir string) (Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create audit directory")
	}

	path := filepath.Join(dir, "upload_audit-"+time.Now().Format("20060102")+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open audit file %s", path)
	}

	logx.As().Debug().Str("path", path).Msg("Audit recorder opened")
	return &jsonlRecorder{file: file, enc: json.NewEncoder(file)}, nil
}

func (r *jsonlRecorder) Write(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// audit is best-effort; a write failure must not fail the upload
	if err := r.enc.Encode(rec); err != nil {
		logx.As().Warn().Err(err).Str("key", rec.Key).Msg("Could not write audit record")
	}
}

func (r *jsonlRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

type nopRecorder struct{}

func (nopRecorder) Write(Record) {}
func (nopRecorder) Close() error { return nil }

// Nop returns a recorder that discards everything, used when auditing is
// disabled in configuration.
func Nop() Recorder {
	return nopRecorder{}
}
