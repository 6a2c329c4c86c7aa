package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/dedup"
	"github.com/hma-data/mba-ingest/internal/objstore"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

var (
	flagDuplicatesInput  string
	flagDuplicatesRemote bool

	duplicatesCmd = &cobra.Command{
		Use:   "duplicates",
		Short: "Report duplicate files under the input directory",
		Long:  "Scan the input directory, group files by content digest and print the duplicates, oldest copy first",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.ParseFlags(args); err != nil {
				logx.As().Error().Err(err).Msg("Failed to parse flags")
				os.Exit(1)
			}
			runDuplicates(cmd.Context())
		},
	}
)

func init() {
	duplicatesCmd.Flags().StringVarP(&flagDuplicatesInput, "input", "i", "", "input directory (overrides config)")
	duplicatesCmd.Flags().BoolVar(&flagDuplicatesRemote, "remote", false, "also summarise the objects already stored per scope")
}

func runDuplicates(ctx context.Context) {
	cfg := config.Get()
	input := cfg.Ingest.Input
	if flagDuplicatesInput != "" {
		input = flagDuplicatesInput
	}

	detector := newDetector(cfg)
	groups, err := detector.ScanDirectory(input, true)
	if err != nil {
		logx.As().Fatal().Err(err).Str("input", input).Msg("Failed to scan directory")
	}

	fmt.Println(dedup.GenerateReport(dedup.FindDuplicateGroups(groups), input))

	if flagDuplicatesRemote {
		printRemoteSummary(ctx, newStore(cfg), cfg.Scopes)
	}
}

// remoteListMax caps how many objects are fetched per scope for the
// summary; a truncated listing is reported as a lower bound.
const remoteListMax = 10000

// printRemoteSummary lists each scope's stored objects so local duplicates
// can be compared against what is already uploaded.
func printRemoteSummary(ctx context.Context, store objstore.Client, scopes map[string]*config.ScopeConfig) {
	names := make([]string, 0, len(scopes))
	for name := range scopes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := scopes[name]
		entries, err := store.List(ctx, sc.Bucket, sc.Prefix, remoteListMax)
		if err != nil {
			logx.As().Error().Err(err).Str("scope", name).Msg("Failed to list remote objects")
			continue
		}

		var bytes int64
		for _, e := range entries {
			bytes += e.Size
		}

		qualifier := ""
		if len(entries) >= remoteListMax {
			qualifier = "at least "
		}
		fmt.Printf("Scope %s: %s%d object(s), %d bytes under s3://%s/%s\n",
			name, qualifier, len(entries), bytes, sc.Bucket, sc.Prefix)
	}
}
