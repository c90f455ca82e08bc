package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/termhub/termsync/cmd/termsync/commands"
	"github.com/termhub/termsync/logger"
)

var (
	verboseFlag bool
	jsonLogFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "termsync",
	Short: "termsync - Terminology feed subscription and import service",
	Long: `termsync - Subscribe to a terminology feed and keep a local vocabulary in sync.

termsync downloads terminology exports (or reads dropped archives), streams
their concepts and mappings through a worker pool, and persists them to a
local SQLite database with a full per-record audit trail.

Examples:
  termsync subscribe https://feed.example.com/sources/ciel   # Configure the feed
  termsync import                                            # Run a subscription import
  termsync import --file release.zip                         # Import a local archive
  termsync status                                            # Show run state and progress
  termsync daemon                                            # Run scheduler and intake watcher`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogFlag); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verboseFlag {
			return logger.SetVerbose()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogFlag, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.SubscribeCmd)
	rootCmd.AddCommand(commands.DaemonCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
