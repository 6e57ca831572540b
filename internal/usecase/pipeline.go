package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newswatch/internal/domain"
	"newswatch/internal/infrastructure/feedstore"
	"newswatch/internal/ports"
	"newswatch/internal/story"
)

// dryRunPreviewLimit caps how many qualifying stories a dry run prints.
const dryRunPreviewLimit = 5

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Classifier ports.Classifier
	Feeds      *feedstore.Store
	Archive    ports.StoryArchive
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline implements the per-topic scrape workflow and the maintenance
// operations that share its persistence layer.
type Pipeline struct {
	source     ports.ArticleSource
	classifier ports.Classifier
	feeds      *feedstore.Store
	archive    ports.StoryArchive
	logger     *slog.Logger
	now        func() time.Time
}

// TopicFiles locates one topic's outputs and its RSS channel metadata.
type TopicFiles struct {
	Key            string
	Name           string
	FeedPath       string
	RSSPath        string
	RSSTitle       string
	RSSDescription string
	RSSLink        string
}

// RunOptions parameterizes a single scrape run.
type RunOptions struct {
	Topic        TopicFiles
	Queries      []string
	Prompt       string
	SkipAnalysis bool
	DryRun       bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		source:     deps.Source,
		classifier: deps.Classifier,
		feeds:      deps.Feeds,
		archive:    deps.Archive,
		logger:     deps.Logger,
		now:        now,
	}
}

// Run executes the scrape pipeline for one topic: fetch, diff against the
// existing feed, classify, assemble, gate on relevance, persist. Feed and
// RSS persistence failures abort the run; archive failures only warn.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) error {
	existing := p.feeds.Load(opts.Topic.FeedPath)

	articles, err := p.source.FetchAll(ctx, opts.Queries)
	if err != nil {
		return fmt.Errorf("fetch articles: %w", err)
	}
	p.info("articles fetched", "topic", opts.Topic.Key, "count", len(articles))

	// Drop URLs the feed already carries before spending classifier calls
	// on them; classification is the expensive stage.
	fresh := p.diffAgainstFeed(existing, articles)
	p.info("new articles", "topic", opts.Topic.Key, "count", len(fresh))

	if len(fresh) == 0 {
		p.info("nothing to do", "topic", opts.Topic.Key)
		return nil
	}

	var verdicts map[string]domain.Verdict
	if opts.SkipAnalysis {
		p.info("analysis skipped", "topic", opts.Topic.Key)
	} else {
		verdicts = p.classifier.AnalyzeBatch(ctx, fresh, opts.Prompt, func(done, total int) {
			p.debug("classification progress", "done", done, "total", total)
		})
		p.info("articles classified", "topic", opts.Topic.Key, "classified", len(verdicts), "of", len(fresh))
	}

	now := p.now()
	stories := make([]domain.Story, 0, len(fresh))
	for _, article := range fresh {
		var verdict *domain.Verdict
		if v, ok := verdicts[article.URL]; ok {
			verdict = &v
		}
		stories = append(stories, story.New(article, verdict, now))
	}

	// The relevance gate only makes sense when classification ran: in
	// skip-analysis mode every story carries the 0.5 default and would be
	// filtered wholesale.
	qualifying := stories
	if !opts.SkipAnalysis {
		qualifying = qualifying[:0:0]
		for _, s := range stories {
			if s.RelevanceScore >= domain.RelevanceThreshold {
				qualifying = append(qualifying, s)
			}
		}
	}
	p.info("qualifying stories", "topic", opts.Topic.Key, "count", len(qualifying), "threshold", domain.RelevanceThreshold)

	if opts.DryRun {
		printPreview(opts.Topic.Name, qualifying)
		return nil
	}

	merged := feedstore.Merge(existing, qualifying, now)
	if err := p.feeds.Save(opts.Topic.FeedPath, merged); err != nil {
		return fmt.Errorf("save feed: %w", err)
	}

	raw, err := feedstore.RenderRSS(merged, opts.Topic.RSSTitle, opts.Topic.RSSDescription, opts.Topic.RSSLink)
	if err != nil {
		return fmt.Errorf("render rss: %w", err)
	}
	if err := p.feeds.SaveRSS(opts.Topic.RSSPath, raw); err != nil {
		return fmt.Errorf("save rss: %w", err)
	}

	archived := 0
	if p.archive != nil {
		archived, err = p.archive.AddStories(ctx, qualifying)
		if err != nil {
			p.warn("archive write failed", "topic", opts.Topic.Key, "error", err)
		}
	}

	p.info("run complete",
		"topic", opts.Topic.Key,
		"fetched", len(articles),
		"new", len(fresh),
		"classified", len(verdicts),
		"qualifying", len(qualifying),
		"feed_total", merged.Count,
		"archived", archived,
	)
	return nil
}

func (p *Pipeline) diffAgainstFeed(feed *domain.Feed, articles []domain.Article) []domain.Article {
	known := map[string]struct{}{}
	if feed != nil {
		for _, s := range feed.Stories {
			known[s.URL] = struct{}{}
		}
	}

	fresh := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := known[a.URL]; ok {
			continue
		}
		fresh = append(fresh, a)
	}
	return fresh
}

func printPreview(topicName string, stories []domain.Story) {
	fmt.Printf("Dry run: %d qualifying stories for %s\n", len(stories), topicName)
	for i, s := range stories {
		if i >= dryRunPreviewLimit {
			break
		}
		fmt.Printf("%d. [%.2f %s] %s (%s, %s)\n   %s\n",
			i+1, s.RelevanceScore, s.StoryType, s.Title, s.Source, s.Date, s.URL)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
