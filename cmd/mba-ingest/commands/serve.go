package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/hma-data/mba-ingest/internal/api"
	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/queue"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job submission API with long-lived upload workers",
	Long:  "Serve POST /jobs, GET /stats and GET /health while upload workers drain submitted jobs in the background",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.ParseFlags(args); err != nil {
			logx.As().Error().Err(err).Msg("Failed to parse flags")
			os.Exit(1)
		}
		runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	cfg := config.Get()

	store := newStore(cfg)
	detector := newDetector(cfg)
	rec := newRecorder(cfg)
	defer func() { _ = rec.Close() }()

	up := newUploader(cfg, store, detector, rec, false, false)

	q := queue.New()

	// API workers poll until shutdown; drain-once would exit on the first
	// idle second
	done := make(chan struct{})
	go func() {
		queue.RunWorkers(ctx, q, up, concurrency(cfg), pollTimeout(cfg), false)
		close(done)
	}()

	server := api.NewServer(*cfg.API, q, cfg.Scopes)
	err := server.Start(ctx)

	cancel()
	<-done

	if err != nil {
		logx.As().Error().Err(err).Msg("API server failed")
		os.Exit(1)
	}
	logx.As().Info().Msg("All workers stopped")
}
