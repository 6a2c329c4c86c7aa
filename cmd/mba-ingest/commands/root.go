package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/version"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

var (
	// Used for flags.
	flagConfig string

	rootCmd = &cobra.Command{
		Use:   "mba-ingest",
		Short: "Member benefit file ingestion pipeline",
		Long:  "mba-ingest - discovers member benefit and policy files, deduplicates them and uploads them to object storage",
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mba-ingest %s (%s)\n", version.Number(), version.Commit())
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "d", "", "config file path")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(duplicatesCmd)
	rootCmd.AddCommand(produceCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if err := config.Initialize(flagConfig); err != nil {
		fmt.Println("failed to initialize config")
		cobra.CheckErr(err)
	}

	if err := logx.Initialize(config.Get().Log); err != nil {
		fmt.Println(err)
		cobra.CheckErr(err)
	}
}
