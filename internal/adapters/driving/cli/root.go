// Package cli provides the command line interface for the ingest
// engine. Services are injected by the composition root via Configure
// before Execute runs.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driving"
)

// version is set at build time via -ldflags.
var version = "dev"

// TriggerRunner is the pending-trigger poll loop run by serve.
type TriggerRunner interface {
	Run(ctx context.Context) error
}

// Services carries everything the commands need.
type Services struct {
	Refresher     driving.Refresher
	ThreadManager driving.ThreadManager
	Rebuilder     driving.IndexRebuilder
	Triggers      TriggerRunner

	RefreshProgress driven.RefreshProgressStore
	RebuildProgress driven.RebuildProgressStore

	// Serve schedule.
	InitialDownloadDelay time.Duration
	RefreshInterval      time.Duration
	AnalysisStartupDelay time.Duration
}

var (
	refresher       driving.Refresher
	threadManager   driving.ThreadManager
	rebuilder       driving.IndexRebuilder
	triggerRunner   TriggerRunner
	refreshProgress driven.RefreshProgressStore
	rebuildProgress driven.RebuildProgressStore

	initialDownloadDelay time.Duration
	refreshInterval      time.Duration
	analysisStartupDelay time.Duration
)

// Configure injects the wired services. Call once before Execute.
func Configure(s Services) {
	refresher = s.Refresher
	threadManager = s.ThreadManager
	rebuilder = s.Rebuilder
	triggerRunner = s.Triggers
	refreshProgress = s.RefreshProgress
	rebuildProgress = s.RebuildProgress
	initialDownloadDelay = s.InitialDownloadDelay
	refreshInterval = s.RefreshInterval
	analysisStartupDelay = s.AnalysisStartupDelay
}

var rootCmd = &cobra.Command{
	Use:   "ecfr-ingest",
	Short: "eCFR regulatory document ingest and analytics engine",
	Long: `ecfr-ingest downloads the Electronic Code of Federal Regulations,
parses each title into its document hierarchy, and runs analytics
workers over the stored documents: text metrics, regulation age
distributions, amendment histories and LLM section analysis.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
