package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest refresh and rebuild jobs",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if refreshProgress == nil || rebuildProgress == nil {
		return errors.New("status stores not configured")
	}

	ctx := context.Background()

	refresh, err := refreshProgress.LatestRefresh(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cmd.Println("No refresh jobs recorded.")
	case err != nil:
		return fmt.Errorf("load refresh status: %w", err)
	default:
		printRefreshProgress(cmd, refresh)
	}

	rebuild, err := rebuildProgress.LatestRebuild(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cmd.Println("No index rebuilds recorded.")
	case err != nil:
		return fmt.Errorf("load rebuild status: %w", err)
	default:
		cmd.Printf("Rebuild %s: %s, %d indexed, %d failed of %d documents\n",
			rebuild.ID, rebuild.Status,
			rebuild.IndexedDocuments, rebuild.FailedDocuments, rebuild.TotalDocuments)
	}
	return nil
}
