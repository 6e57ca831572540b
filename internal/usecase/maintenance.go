package usecase

import (
	"context"
	"fmt"

	"newswatch/internal/domain"
	"newswatch/internal/infrastructure/feedstore"
)

// Cleanup removes stories below the relevance threshold from every topic
// feed on disk, rewrites the affected feed and RSS files, and prunes the
// archive. In dry-run mode it only prints before/after counts.
func (p *Pipeline) Cleanup(ctx context.Context, topics []TopicFiles, dryRun bool) error {
	for _, topic := range topics {
		feed := p.feeds.Load(topic.FeedPath)
		if feed == nil {
			p.debug("no feed on disk", "topic", topic.Key)
			continue
		}

		kept := make([]domain.Story, 0, len(feed.Stories))
		for _, s := range feed.Stories {
			if s.RelevanceScore >= domain.RelevanceThreshold {
				kept = append(kept, s)
			}
		}

		fmt.Printf("%s: %d stories -> %d stories\n", topic.FeedPath, len(feed.Stories), len(kept))

		if dryRun || len(kept) == len(feed.Stories) {
			continue
		}

		pruned := &domain.Feed{
			Updated: p.now().UTC(),
			Count:   len(kept),
			Stories: kept,
		}
		if err := p.feeds.Save(topic.FeedPath, pruned); err != nil {
			return fmt.Errorf("save feed %s: %w", topic.FeedPath, err)
		}

		raw, err := feedstore.RenderRSS(pruned, topic.RSSTitle, topic.RSSDescription, topic.RSSLink)
		if err != nil {
			return fmt.Errorf("render rss %s: %w", topic.RSSPath, err)
		}
		if err := p.feeds.SaveRSS(topic.RSSPath, raw); err != nil {
			return fmt.Errorf("save rss %s: %w", topic.RSSPath, err)
		}
	}

	if dryRun || p.archive == nil {
		return nil
	}

	removed, err := p.archive.PruneBelow(ctx, domain.RelevanceThreshold)
	if err != nil {
		p.warn("archive prune failed", "error", err)
		return nil
	}
	p.info("archive pruned", "removed", removed, "threshold", domain.RelevanceThreshold)
	return nil
}

// RegenerateRSS rebuilds each topic's RSS document from its JSON feed with
// no filtering. Topics without a feed on disk are skipped.
func (p *Pipeline) RegenerateRSS(topics []TopicFiles) error {
	for _, topic := range topics {
		feed := p.feeds.Load(topic.FeedPath)
		if feed == nil {
			p.debug("no feed on disk", "topic", topic.Key)
			continue
		}

		raw, err := feedstore.RenderRSS(feed, topic.RSSTitle, topic.RSSDescription, topic.RSSLink)
		if err != nil {
			return fmt.Errorf("render rss %s: %w", topic.RSSPath, err)
		}
		if err := p.feeds.SaveRSS(topic.RSSPath, raw); err != nil {
			return fmt.Errorf("save rss %s: %w", topic.RSSPath, err)
		}
		p.info("rss regenerated", "topic", topic.Key, "stories", feed.Count)
	}
	return nil
}
