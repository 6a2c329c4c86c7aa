package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/dedup"
	"github.com/hma-data/mba-ingest/internal/discovery"
	"github.com/hma-data/mba-ingest/internal/queue"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

var (
	flagInput            string
	flagScope            string
	flagInclude          string
	flagExclude          string
	flagDryRun           bool
	flagOverwrite        bool
	flagConcurrency      int
	flagNoSkipDuplicates bool

	uploadCmd = &cobra.Command{
		Use:   "upload",
		Short: "Discover and upload files to object storage",
		Long:  "Discover files under the input directory, skip duplicates and upload the rest to the configured buckets",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.ParseFlags(args); err != nil {
				logx.As().Error().Err(err).Msg("Failed to parse flags")
				os.Exit(1)
			}
			runUpload(cmd.Context())
		},
	}
)

func init() {
	uploadCmd.Flags().StringVarP(&flagInput, "input", "i", "", "input directory (overrides config)")
	uploadCmd.Flags().StringVarP(&flagScope, "scope", "s", "", "restrict to one scope (mba, policy)")
	uploadCmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated extensions to include")
	uploadCmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated extensions to exclude")
	uploadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "log what would be uploaded without uploading")
	uploadCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "replace same-key objects that differ in size")
	uploadCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "number of concurrent uploads (overrides config)")
	uploadCmd.Flags().BoolVar(&flagNoSkipDuplicates, "no-skip-duplicates", false, "upload even when an equal-size object exists")
}

func producerOptions(cfg config.Config) queue.ProducerOptions {
	if flagScope == "" && !cfg.Ingest.AutoDetectScope {
		logx.As().Fatal().Msg("--scope is required when autoDetectScope is disabled")
	}

	opts := queue.ProducerOptions{
		Scope:           flagScope,
		Include:         cfg.Ingest.Include,
		Exclude:         cfg.Ingest.Exclude,
		ExcludePatterns: cfg.Ingest.ExcludePatterns,
		IncludeType:     cfg.Ingest.IncludeType,
	}
	if flagInclude != "" {
		opts.Include = discovery.ParseExtensions(flagInclude)
	}
	if flagExclude != "" {
		opts.Exclude = discovery.ParseExtensions(flagExclude)
	}
	return opts
}

func inputDir(cfg config.Config) string {
	if flagInput != "" {
		return flagInput
	}
	return cfg.Ingest.Input
}

func runUpload(ctx context.Context) {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	cfg := config.Get()
	input := inputDir(cfg)

	store := newStore(cfg)
	detector := newDetector(cfg)
	rec := newRecorder(cfg)
	defer func() { _ = rec.Close() }()

	// surface local duplicates before spending bandwidth on them
	if groups, err := detector.ScanDirectory(input, true); err == nil {
		if dup := dedup.FindDuplicateGroups(groups); len(dup) > 0 {
			fmt.Println(dedup.GenerateReport(dup, input))
		}
	}

	q := queue.New()
	producer := queue.NewProducer(q, cfg.Scopes, producerOptions(cfg))
	if _, err := producer.Produce(input); err != nil {
		logx.As().Fatal().Err(err).Str("input", input).Msg("Failed to discover files")
	}

	jobs := drainJobs(ctx, q)
	if len(jobs) == 0 {
		logx.As().Info().Str("input", input).Msg("Nothing to upload")
		return
	}

	up := newUploader(cfg, store, detector, rec, flagDryRun, flagOverwrite)
	stats := up.UploadBatch(ctx, jobs)

	fmt.Printf("Uploaded %d, skipped %d, failed %d of %d files (%.1f%% success)\n",
		stats.Uploaded, stats.Skipped, stats.Failed, stats.Total, stats.SuccessRate())

	exitOnFailures(stats)
}
