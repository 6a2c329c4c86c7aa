package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/internal/queue"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

var (
	flagDrainOnce bool

	workCmd = &cobra.Command{
		Use:   "work",
		Short: "Run the producer and upload workers over a shared queue",
		Long:  "Discover files, enqueue one job per file and drain the queue with concurrent upload workers",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.ParseFlags(args); err != nil {
				logx.As().Error().Err(err).Msg("Failed to parse flags")
				os.Exit(1)
			}
			runWork(cmd.Context())
		},
	}
)

func init() {
	workCmd.Flags().StringVarP(&flagInput, "input", "i", "", "input directory (overrides config)")
	workCmd.Flags().StringVarP(&flagScope, "scope", "s", "", "restrict to one scope (mba, policy)")
	workCmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated extensions to include")
	workCmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated extensions to exclude")
	workCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "replace same-key objects that differ in size")
	workCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "number of upload workers (overrides config)")
	workCmd.Flags().BoolVar(&flagNoSkipDuplicates, "no-skip-duplicates", false, "upload even when an equal-size object exists")
	workCmd.Flags().BoolVar(&flagDrainOnce, "drain-once", false, "exit once the queue is observed empty")
}

// drainPipeline enqueues every discovered file and only then drains the
// queue with drain-once workers. Production must complete first: a slow
// discovery would otherwise let every worker exit on its first empty poll
// and the run would silently process nothing.
func drainPipeline(ctx context.Context, q *queue.Queue, producer *queue.Producer, processor queue.JobProcessor, workers int, timeout time.Duration, input string) (core.QueueStats, error) {
	if _, err := producer.Produce(input); err != nil {
		return q.Stats(), err
	}
	queue.RunWorkers(ctx, q, processor, workers, timeout, true)
	return q.Stats(), nil
}

// pipelineIncomplete reports whether a finished run left work undone,
// either failed jobs or jobs still queued after the workers stopped.
func pipelineIncomplete(stats core.QueueStats) bool {
	return stats.Failed > 0 || stats.Queued > 0
}

func runWork(ctx context.Context) {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	cfg := config.Get()
	input := inputDir(cfg)

	store := newStore(cfg)
	detector := newDetector(cfg)
	rec := newRecorder(cfg)
	defer func() { _ = rec.Close() }()

	up := newUploader(cfg, store, detector, rec, false, flagOverwrite)

	q := queue.New()
	producer := queue.NewProducer(q, cfg.Scopes, producerOptions(cfg))
	drainOnce := cfg.Queue.DrainOnce || flagDrainOnce

	var stats core.QueueStats
	if drainOnce {
		var err error
		stats, err = drainPipeline(ctx, q, producer, up, concurrency(cfg), pollTimeout(cfg), input)
		if err != nil {
			logx.As().Fatal().Err(err).Str("input", input).Msg("Failed to discover files")
		}
	} else {
		// long-lived workers poll until a signal arrives, so uploads may
		// overlap discovery
		done := make(chan struct{})
		go func() {
			queue.RunWorkers(ctx, q, up, concurrency(cfg), pollTimeout(cfg), false)
			close(done)
		}()

		if _, err := producer.Produce(input); err != nil {
			cancel()
			<-done
			logx.As().Fatal().Err(err).Str("input", input).Msg("Failed to discover files")
		}
		<-done
		stats = q.Stats()
	}

	fmt.Printf("Processed %d, failed %d of %d jobs\n", stats.Processed, stats.Failed, stats.Total)
	if pipelineIncomplete(stats) {
		os.Exit(1)
	}
}
