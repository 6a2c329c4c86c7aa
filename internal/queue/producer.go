package queue

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/internal/discovery"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// ProducerOptions controls discovery and key construction for produced jobs.
type ProducerOptions struct {
	// Scope forces a single scope for every file; empty means use the scope
	// detected from each file's path.
	Scope string
	// Include, Exclude and ExcludePatterns are passed through to discovery.
	Include         []string
	Exclude         []string
	ExcludePatterns []string
	// IncludeType inserts the file type category into object keys.
	IncludeType bool
}

// Producer discovers files and enqueues one upload job per file. It is the
// write side of the queue; workers are the read side.
type Producer struct {
	queue  *Queue
	scopes map[string]*config.ScopeConfig
	opts   ProducerOptions
}

// NewProducer creates a producer targeting q. scopes maps scope names to
// their bucket and prefix.
func NewProducer(q *Queue, scopes map[string]*config.ScopeConfig, opts ProducerOptions) *Producer {
	return &Producer{queue: q, scopes: scopes, opts: opts}
}

// Produce scans root and enqueues a job for every eligible file. Files whose
// scope cannot be resolved to a configured bucket are skipped with a
// warning, not treated as errors. It returns the number of jobs enqueued.
func (p *Producer) Produce(root string) (int, error) {
	records, err := discovery.Discover(root, discovery.Options{
		Include:         p.opts.Include,
		Exclude:         p.opts.Exclude,
		ExcludePatterns: p.opts.ExcludePatterns,
		Scope:           p.opts.Scope,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to discover files under %s", root)
	}

	count := 0
	for _, record := range records {
		scope := record.Scope
		if p.opts.Scope != "" {
			scope = strings.ToLower(p.opts.Scope)
		}
		if scope == "" {
			logx.As().Warn().
				Str("path", record.Path).
				Msg("Skipping file with undetected scope")
			continue
		}

		sc, ok := p.scopes[scope]
		if !ok || sc == nil {
			logx.As().Warn().
				Str("path", record.Path).
				Str("scope", scope).
				Msg("Skipping file, scope has no configured bucket")
			continue
		}

		key := discovery.BuildKey(scope, record.Path, sc.Prefix, p.opts.IncludeType)
		p.queue.Put(core.NewUploadJob(record.Path, scope, sc.Bucket, key))
		count++
	}

	logx.As().Info().
		Int("enqueued", count).
		Int("discovered", len(records)).
		Str("root", root).
		Msg("Producer finished")

	return count, nil
}
