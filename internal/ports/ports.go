package ports

import (
	"context"

	"newswatch/internal/domain"
)

// ArticleSource pulls candidate articles from the upstream search API.
// Implementations never surface per-query failures: a failed query
// contributes zero results and the run continues.
type ArticleSource interface {
	FetchAll(ctx context.Context, queries []string) ([]domain.Article, error)
}

// Classifier scores a single article against a topic instruction prompt.
// An error means "no classification" and callers fall back to the defaults
// in domain; it is never fatal to a run.
type Classifier interface {
	Analyze(ctx context.Context, article domain.Article, prompt string) (domain.Verdict, error)
	// AnalyzeBatch classifies articles in fixed-size concurrent batches and
	// returns verdicts keyed by article URL. Articles whose classification
	// failed are absent from the map.
	AnalyzeBatch(ctx context.Context, articles []domain.Article, prompt string, onProgress func(done, total int)) map[string]domain.Verdict
}

// StoryArchive mirrors accepted stories into the durable relational store.
// Inserts are idempotent; the archive is best-effort relative to the feed.
type StoryArchive interface {
	HasStory(ctx context.Context, url string) (bool, error)
	AddStory(ctx context.Context, story domain.Story) error
	// AddStories inserts all stories in one transaction and reports how many
	// were not previously present (by URL). Pre-existing rows are replaced
	// in place but not counted.
	AddStories(ctx context.Context, stories []domain.Story) (int, error)
	// PruneBelow deletes rows whose relevance score is under threshold and
	// returns the number removed.
	PruneBelow(ctx context.Context, threshold float64) (int64, error)
	Close() error
}
