package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/config/env"
	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/llm/grok"
	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/llm/ratelimit"
	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/search/elastic"
	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/storage/mongo"
	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/ecfr-ingest/internal/connectors/ecfr"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/core/services"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := env.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := mongo.NewStore(ctx, cfg.MongoURI)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to document store: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("Close document store: %v", err)
		}
	}()

	blobs, err := mongo.NewBlobStore(store)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	var search driven.SearchIndex
	if cfg.SearchEnabled() {
		idx, err := elastic.NewSearchIndex(cfg.ElasticsearchHost)
		if err != nil {
			return fmt.Errorf("connect to search engine: %w", err)
		}
		search = idx
	} else {
		logger.Warn("ELASTICSEARCH_HOST not set; search indexing disabled")
	}

	registry := ecfr.NewRegistryClient(ecfr.DefaultRegistryBaseURL)
	downloader := ecfr.NewDownloader(ecfr.DefaultBulkDataBaseURL)
	versions := ecfr.NewVersionsClient(ecfr.DefaultRegistryBaseURL)

	refresher := services.NewRefresher(
		registry, downloader,
		store.Titles(), store.Documents(), blobs, search, store.RefreshProgress(),
	)

	workers := []services.Worker{
		services.NewTextMetricsWorker(
			store.Threads(), store.Titles(), store.Documents(), blobs,
			store.Metrics(), store.Settings(),
		),
		services.NewAgeDistributionWorker(
			store.Threads(), store.Titles(), store.VersionHistories(), store.Metrics(),
		),
		services.NewVersionHistoryWorker(
			store.Threads(), store.Titles(), versions, store.VersionHistories(),
		),
	}

	var llm driven.LLMService
	if cfg.SectionAnalysisEnabled() {
		inner, err := grok.NewLLMService(grok.Config{
			APIKey:  cfg.GrokAPIKey,
			Model:   cfg.Model,
			Timeout: cfg.AnalysisTimeout,
		})
		if err != nil {
			return fmt.Errorf("configure llm: %w", err)
		}
		llm = ratelimit.Wrap(inner, cfg.RateLimitRPM)
		defer llm.Close()

		workers = append(workers, services.NewSectionAnalysisWorker(
			store.Threads(), store.Documents(), blobs, store.SectionAnalyses(),
			llm, env.NewPromptStore("prompts.toml"),
			cfg.BatchSize, cfg.RateLimitRPM, cfg.MaxTokens,
		))
	} else {
		logger.Warn("GROK_API_KEY not set; section analysis disabled")
	}

	manager := services.NewThreadManager(store.Threads(), workers...)

	var rebuilder *services.IndexRebuilder
	if search != nil {
		rebuilder = services.NewIndexRebuilder(store.Documents(), search, store.RebuildProgress())
	}

	svcs := cli.Services{
		Refresher:            refresher,
		ThreadManager:        manager,
		Triggers:             services.NewTriggerWatcher(store.RefreshProgress(), refresher),
		RefreshProgress:      store.RefreshProgress(),
		RebuildProgress:      store.RebuildProgress(),
		InitialDownloadDelay: cfg.InitialDownloadDelay,
		RefreshInterval:      cfg.RefreshInterval,
		AnalysisStartupDelay: cfg.AnalysisStartupDelay,
	}
	if rebuilder != nil {
		svcs.Rebuilder = rebuilder
	}
	cli.Configure(svcs)

	return cli.Execute()
}
