package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingest engine until interrupted",
	Long: `Runs the full engine: an initial download after the configured delay,
scheduled refreshes on the configured interval, the analytics workers,
and the pending-trigger watcher. SIGINT or SIGTERM stops the workers
at their next checkpoint and exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if refresher == nil || threadManager == nil {
		return errors.New("engine services not configured")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd.Println("Engine starting; press Ctrl-C to stop.")

	go refreshLoop(ctx)
	go analysisStartup(ctx)
	if triggerRunner != nil {
		go func() {
			if err := triggerRunner.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Trigger watcher exited: %v", err)
			}
		}()
	}

	<-ctx.Done()
	cmd.Println("Shutting down; waiting for workers to checkpoint...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer stopCancel()
	if err := threadManager.StopAll(stopCtx); err != nil {
		logger.Error("Stop workers: %v", err)
	}
	cmd.Println("Engine stopped.")
	return nil
}

// refreshLoop runs the initial download after its delay, then refreshes
// on the configured interval.
func refreshLoop(ctx context.Context) {
	if !waitFor(ctx, initialDownloadDelay) {
		return
	}

	logger.Info("Running startup download")
	if _, err := refresher.InitialDownload(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Initial download: %v", err)
	}

	interval := refreshInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("Running scheduled refresh")
			if _, err := refresher.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Scheduled refresh: %v", err)
			}
		}
	}
}

// analysisStartup starts the workers after the configured delay.
func analysisStartup(ctx context.Context) {
	if !waitFor(ctx, analysisStartupDelay) {
		return
	}
	logger.Info("Starting analytics workers")
	if err := threadManager.StartAll(ctx); err != nil {
		logger.Error("Start workers: %v", err)
	}
}

func waitFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
