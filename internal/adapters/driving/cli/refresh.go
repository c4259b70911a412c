package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

var refreshInitial bool

var refreshCmd = &cobra.Command{
	Use:   "refresh [title-number]",
	Short: "Download or update CFR titles",
	Long: `Downloads title XML from the eCFR bulk data service and rebuilds the
stored document tree. Without arguments, every non-reserved title whose
upstream issue date is newer than the stored copy is refreshed. With a
title number, that one title is re-downloaded regardless of freshness.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshInitial, "initial", false,
		"run a full first-time download instead of a change-detected refresh")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if refresher == nil {
		return errors.New("refresh service not configured")
	}

	ctx := context.Background()

	var (
		progress *domain.RefreshProgress
		err      error
	)
	switch {
	case len(args) == 1:
		number, convErr := strconv.Atoi(args[0])
		if convErr != nil || number < 1 || number > 50 {
			return fmt.Errorf("invalid title number %q", args[0])
		}
		cmd.Printf("Refreshing title %d...\n", number)
		progress, err = refresher.RefreshSingleTitle(ctx, number)
	case refreshInitial:
		cmd.Println("Starting initial download of all titles...")
		progress, err = refresher.InitialDownload(ctx)
	default:
		cmd.Println("Refreshing changed titles...")
		progress, err = refresher.Refresh(ctx)
	}
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	printRefreshProgress(cmd, progress)
	if progress.Status != domain.JobCompleted {
		return fmt.Errorf("refresh job %s ended %s", progress.ID, progress.Status)
	}
	return nil
}

func printRefreshProgress(cmd *cobra.Command, p *domain.RefreshProgress) {
	cmd.Printf("Job %s (%s): %s, %d/%d titles processed\n",
		p.ID, p.Type, p.Status, p.ProcessedTitles, p.TotalTitles)
	for _, f := range p.FailedTitles {
		cmd.Printf("  title %d failed: %s\n", f.Number, f.Error)
	}
}
