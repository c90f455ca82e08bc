package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/termhub/termsync/store"
)

// ImportCmd represents the import command
var ImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Run a terminology import",
	Long: `import — Run a terminology import

Without flags, imports from the configured feed subscription: the first run
fetches the latest release in full, later runs fetch incrementally or pinned
to the subscribed version. With --file, imports a local .zip or .json archive
instead. With --concept, the file is treated as a single concept document and
imported together with its embedded mappings.

Examples:
  termsync import                           # Subscription import
  termsync import --file release.zip        # Local archive import
  termsync import --file concept.json --concept`,
	RunE: runImport,
}

var (
	importFileFlag    string
	importConceptFlag bool
)

func init() {
	ImportCmd.Flags().StringVar(&importFileFlag, "file", "", "Import a local archive instead of the feed")
	ImportCmd.Flags().BoolVar(&importConceptFlag, "concept", false, "Treat --file as a single concept document")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importConceptFlag && importFileFlag == "" {
		return fmt.Errorf("--concept requires --file")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	// heal any run left open by a crashed process before starting
	if running, err := a.importer.IsRunning(ctx); err != nil {
		return err
	} else if running {
		return fmt.Errorf("an import is already in progress")
	}

	switch {
	case importConceptFlag:
		err = a.importer.ImportSingleConcept(ctx, importFileFlag)
	case importFileFlag != "":
		err = a.importer.ImportFile(ctx, importFileFlag)
	default:
		err = a.importer.ImportCollection(ctx)
	}
	if err != nil {
		return err
	}

	last, err := a.imports.LastImport(ctx)
	if err != nil {
		return err
	}
	if last != nil {
		return printImportSummary(ctx, a, last)
	}
	return nil
}

func printImportSummary(ctx context.Context, a *app, imp *store.Import) error {
	created, err := a.imports.CountItems(ctx, imp.UUID, store.ItemCreated)
	if err != nil {
		return err
	}
	updated, err := a.imports.CountItems(ctx, imp.UUID, store.ItemUpdated)
	if err != nil {
		return err
	}
	upToDate, err := a.imports.CountItems(ctx, imp.UUID, store.ItemUpToDate)
	if err != nil {
		return err
	}
	failed, err := a.imports.CountItems(ctx, imp.UUID, store.ItemError)
	if err != nil {
		return err
	}

	fmt.Printf("Import %s\n", imp.UUID)
	fmt.Printf("  Duration:   %s\n", imp.Duration().Round(time.Millisecond))
	fmt.Printf("  Created:    %d\n", created)
	fmt.Printf("  Updated:    %d\n", updated)
	fmt.Printf("  Up to date: %d\n", upToDate)
	fmt.Printf("  Failed:     %d\n", failed)
	if imp.ErrorMessage != "" {
		fmt.Printf("  Error:      %s\n", imp.ErrorMessage)
	}
	return nil
}
