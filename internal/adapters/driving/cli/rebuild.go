package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the search index from the document store",
	Long: `Deletes the search index, recreates it with the current mapping, and
re-indexes every stored document title by title.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	if rebuilder == nil {
		return errors.New("rebuild service not configured")
	}

	cmd.Println("Rebuilding search index...")
	progress, err := rebuilder.Rebuild(context.Background(), domain.TriggerManual)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	cmd.Printf("Rebuild %s: %s, %d indexed, %d failed of %d documents\n",
		progress.ID, progress.Status,
		progress.IndexedDocuments, progress.FailedDocuments, progress.TotalDocuments)
	return nil
}
