package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/termhub/termsync/errors"
)

// StatusCmd represents the status command
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show import state and progress",
	Long: `status — Show import state and progress

Displays whether a run is active, its blended progress estimate, recent runs,
and the size of the stored vocabulary.

Examples:
  termsync status
  termsync status --limit 10`,
	RunE: runStatus,
}

var statusLimitFlag int

func init() {
	StatusCmd.Flags().IntVar(&statusLimitFlag, "limit", 5, "Number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	running, err := a.importer.IsRunning(ctx)
	if err != nil {
		return err
	}
	if running {
		fmt.Println("Import: running")
	} else {
		fmt.Println("Import: idle")
	}

	progress, err := a.importer.Progress(ctx, "")
	if err != nil && !errors.IsNotFoundError(err) {
		return err
	}
	if progress != nil {
		fmt.Printf("Last run: %d%% after %s\n", progress.Percent, progress.Elapsed.Round(time.Second))
	}

	sub, err := a.subs.Get(ctx)
	if err != nil {
		return err
	}
	if sub != nil {
		mode := "release"
		if sub.Snapshot {
			mode = "snapshot"
		}
		fmt.Printf("Subscription: %s (%s)\n", sub.URL, mode)
	} else {
		fmt.Println("Subscription: not configured")
	}

	concepts, err := a.vocab.CountConcepts(ctx)
	if err != nil {
		return err
	}
	mappings, err := a.vocab.CountMappings(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Vocabulary: %d concepts, %d mappings\n", concepts, mappings)

	imports, err := a.imports.ListImports(ctx, statusLimitFlag)
	if err != nil {
		return err
	}
	if len(imports) > 0 {
		fmt.Println("\nRecent runs:")
		for _, imp := range imports {
			state := "running"
			if imp.Successful() {
				state = "ok"
			} else if imp.Stopped() {
				state = "failed"
			}
			fmt.Printf("  %s  %-7s  %s  %s\n",
				imp.LocalStartedAt.Format(time.RFC3339), state,
				imp.Duration().Round(time.Second), imp.SubscriptionURL)
			if imp.ErrorMessage != "" {
				fmt.Printf("    %s\n", firstLine(imp.ErrorMessage))
			}
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
