package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driving"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Control the analytics workers",
	Long: `Manages the four analytics workers: text_metrics, age_distribution,
version_history and section_analysis. Workers checkpoint their progress
and resume where they left off after a stop.`,
}

var analyzeStartCmd = &cobra.Command{
	Use:   "start [thread-type]",
	Short: "Start one worker, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyzeStart,
}

var analyzeStopCmd = &cobra.Command{
	Use:   "stop [thread-type]",
	Short: "Request a cooperative stop of one worker, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyzeStop,
}

var analyzeRestartCmd = &cobra.Command{
	Use:   "restart <thread-type>",
	Short: "Restart a worker from the beginning, discarding its checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeRestart,
}

var analyzeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every worker",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzeStatus,
}

func init() {
	analyzeCmd.AddCommand(analyzeStartCmd, analyzeStopCmd, analyzeRestartCmd, analyzeStatusCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func parseThreadType(arg string) (domain.ThreadType, error) {
	t := domain.ThreadType(arg)
	if !t.Valid() {
		return "", fmt.Errorf("unknown thread type %q (valid: %v)", arg, domain.AllThreadTypes)
	}
	return t, nil
}

func runAnalyzeStart(cmd *cobra.Command, args []string) error {
	if threadManager == nil {
		return errors.New("thread manager not configured")
	}
	ctx := context.Background()

	if len(args) == 0 {
		cmd.Println("Starting all workers...")
		return threadManager.StartAll(ctx)
	}

	t, err := parseThreadType(args[0])
	if err != nil {
		return err
	}
	if err := threadManager.StartThread(ctx, t, driving.StartOptions{}); err != nil {
		return fmt.Errorf("start %s: %w", t, err)
	}
	cmd.Printf("Worker %s started.\n", t)
	return nil
}

func runAnalyzeStop(cmd *cobra.Command, args []string) error {
	if threadManager == nil {
		return errors.New("thread manager not configured")
	}
	ctx := context.Background()

	if len(args) == 0 {
		cmd.Println("Stopping all workers...")
		return threadManager.StopAll(ctx)
	}

	t, err := parseThreadType(args[0])
	if err != nil {
		return err
	}
	if err := threadManager.StopThread(ctx, t); err != nil {
		return fmt.Errorf("stop %s: %w", t, err)
	}
	cmd.Printf("Stop requested for %s.\n", t)
	return nil
}

func runAnalyzeRestart(cmd *cobra.Command, args []string) error {
	if threadManager == nil {
		return errors.New("thread manager not configured")
	}

	t, err := parseThreadType(args[0])
	if err != nil {
		return err
	}
	if err := threadManager.RestartThread(context.Background(), t); err != nil {
		return fmt.Errorf("restart %s: %w", t, err)
	}
	cmd.Printf("Worker %s restarted.\n", t)
	return nil
}

func runAnalyzeStatus(cmd *cobra.Command, _ []string) error {
	if threadManager == nil {
		return errors.New("thread manager not configured")
	}

	threads, err := threadManager.GetThreadStatus(context.Background())
	if err != nil {
		return fmt.Errorf("load thread status: %w", err)
	}

	for _, thread := range threads {
		cmd.Printf("%-18s %-15s %d/%d (%.1f%%)",
			thread.ThreadType, thread.Status,
			thread.Progress.Current, thread.Progress.Total, thread.Progress.Percentage)
		if thread.CurrentItem != "" {
			cmd.Printf("  current=%s", thread.CurrentItem)
		}
		if thread.Error != "" {
			cmd.Printf("  error=%s", thread.Error)
		}
		cmd.Println()
	}
	return nil
}
