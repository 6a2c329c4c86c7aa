package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/queue"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Preview the upload jobs that would be enqueued",
	Long:  "Discover files under the input directory and print the job each one would become, without uploading anything",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.ParseFlags(args); err != nil {
			logx.As().Error().Err(err).Msg("Failed to parse flags")
			os.Exit(1)
		}
		runProduce(cmd.Context())
	},
}

func init() {
	produceCmd.Flags().StringVarP(&flagInput, "input", "i", "", "input directory (overrides config)")
	produceCmd.Flags().StringVarP(&flagScope, "scope", "s", "", "restrict to one scope (mba, policy)")
	produceCmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated extensions to include")
	produceCmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated extensions to exclude")
}

func runProduce(ctx context.Context) {
	cfg := config.Get()
	input := inputDir(cfg)

	q := queue.New()
	producer := queue.NewProducer(q, cfg.Scopes, producerOptions(cfg))
	count, err := producer.Produce(input)
	if err != nil {
		logx.As().Fatal().Err(err).Str("input", input).Msg("Failed to discover files")
	}

	for _, job := range drainJobs(ctx, q) {
		fmt.Printf("%s -> s3://%s/%s\n", job.Path, job.Bucket, job.Key)
	}
	fmt.Printf("%d job(s) would be enqueued from %s\n", count, input)
}
