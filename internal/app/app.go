package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"newswatch/internal/config"
	"newswatch/internal/infrastructure/feedstore"
	"newswatch/internal/infrastructure/llm"
	"newswatch/internal/infrastructure/newsapi"
	"newswatch/internal/infrastructure/storage"
	"newswatch/internal/logging"
	"newswatch/internal/ports"
	"newswatch/internal/usecase"
)

// Application wires configuration to adapters and use cases.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// ScrapeOptions mirrors the scrape command's flags.
type ScrapeOptions struct {
	TopicKey     string
	DaysBack     int
	SkipAnalysis bool
	DryRun       bool
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// Scrape runs the pipeline for one topic. Unknown topics and missing
// credentials fail before any network activity.
func (a *Application) Scrape(ctx context.Context, opts ScrapeOptions) error {
	topic, ok := a.cfg.Topic(opts.TopicKey)
	if !ok {
		return fmt.Errorf("unknown topic %q (known: %s)", opts.TopicKey, strings.Join(a.topicKeys(), ", "))
	}

	if a.cfg.Search.APIKey == "" {
		return fmt.Errorf("NEWS_API_KEY is required")
	}
	if !opts.SkipAnalysis && a.cfg.Claude.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required (or pass --skip-analysis)")
	}

	searchCfg := a.cfg.Search
	if opts.DaysBack > 0 {
		searchCfg.DaysBack = opts.DaysBack
	}

	// The archive is best-effort: if it cannot be opened the run proceeds
	// without it. A dry run never touches it at all.
	var archive ports.StoryArchive
	if !opts.DryRun {
		arch, err := storage.Open(a.cfg.ArchivePath())
		if err != nil {
			a.logger.Warn("cannot open archive, continuing without it", "error", err)
		} else {
			archive = arch
			defer arch.Close()
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     newsapi.NewClient(searchCfg, a.logger.With("component", "search")),
		Classifier: llm.NewClaudeClient(a.cfg.Claude, a.logger.With("component", "classifier")),
		Feeds:      feedstore.NewStore(a.logger.With("component", "feeds")),
		Archive:    archive,
		Logger:     a.logger.With("component", "pipeline"),
	})

	return pipeline.Run(ctx, usecase.RunOptions{
		Topic:        a.topicFiles(topic),
		Queries:      topic.Queries,
		Prompt:       topic.Prompt,
		SkipAnalysis: opts.SkipAnalysis,
		DryRun:       opts.DryRun,
	})
}

// Cleanup prunes sub-threshold stories from all feeds and the archive.
func (a *Application) Cleanup(ctx context.Context, dryRun bool) error {
	var archive ports.StoryArchive
	if !dryRun {
		arch, err := storage.Open(a.cfg.ArchivePath())
		if err != nil {
			a.logger.Warn("cannot open archive, skipping archive prune", "error", err)
		} else {
			archive = arch
			defer arch.Close()
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Feeds:   feedstore.NewStore(a.logger.With("component", "feeds")),
		Archive: archive,
		Logger:  a.logger.With("component", "cleanup"),
	})

	return pipeline.Cleanup(ctx, a.allTopicFiles(), dryRun)
}

// RegenerateRSS rebuilds every topic's RSS file from its JSON feed.
func (a *Application) RegenerateRSS() error {
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Feeds:  feedstore.NewStore(a.logger.With("component", "feeds")),
		Logger: a.logger.With("component", "regen"),
	})
	return pipeline.RegenerateRSS(a.allTopicFiles())
}

// Stats prints archive totals and the per-story-type breakdown.
func (a *Application) Stats(ctx context.Context) error {
	archive, err := storage.Open(a.cfg.ArchivePath())
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	total, byType, err := archive.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Printf("archived stories: %d\n", total)
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-14s %d\n", t, byType[t])
	}
	return nil
}

func (a *Application) topicFiles(topic config.TopicConfig) usecase.TopicFiles {
	return usecase.TopicFiles{
		Key:            topic.Key,
		Name:           topic.Name,
		FeedPath:       a.cfg.FeedPath(topic),
		RSSPath:        a.cfg.RSSPath(topic),
		RSSTitle:       topic.Name,
		RSSDescription: fmt.Sprintf("Curated news coverage: %s", topic.Name),
		RSSLink:        a.cfg.Site.BaseURL,
	}
}

func (a *Application) allTopicFiles() []usecase.TopicFiles {
	files := make([]usecase.TopicFiles, 0, len(a.cfg.Topics))
	for _, topic := range a.cfg.Topics {
		files = append(files, a.topicFiles(topic))
	}
	return files
}

func (a *Application) topicKeys() []string {
	keys := make([]string, 0, len(a.cfg.Topics))
	for _, t := range a.cfg.Topics {
		keys = append(keys, t.Key)
	}
	return keys
}
