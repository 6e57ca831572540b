package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswatch/internal/domain"
	"newswatch/internal/infrastructure/feedstore"
	"newswatch/internal/story"
)

type fakeSource struct {
	articles []domain.Article
	err      error
}

func (f *fakeSource) FetchAll(ctx context.Context, queries []string) ([]domain.Article, error) {
	return f.articles, f.err
}

type fakeClassifier struct {
	verdicts map[string]domain.Verdict
	calls    int
}

func (f *fakeClassifier) Analyze(ctx context.Context, article domain.Article, prompt string) (domain.Verdict, error) {
	if v, ok := f.verdicts[article.URL]; ok {
		return v, nil
	}
	return domain.Verdict{}, errors.New("no verdict")
}

func (f *fakeClassifier) AnalyzeBatch(ctx context.Context, articles []domain.Article, prompt string, onProgress func(done, total int)) map[string]domain.Verdict {
	f.calls++
	out := map[string]domain.Verdict{}
	for i, a := range articles {
		if v, ok := f.verdicts[a.URL]; ok {
			out[a.URL] = v
		}
		if onProgress != nil {
			onProgress(i+1, len(articles))
		}
	}
	return out
}

type fakeArchive struct {
	stories []domain.Story
	addErr  error
	pruned  float64
}

func (f *fakeArchive) HasStory(ctx context.Context, url string) (bool, error) { return false, nil }

func (f *fakeArchive) AddStory(ctx context.Context, s domain.Story) error {
	f.stories = append(f.stories, s)
	return nil
}

func (f *fakeArchive) AddStories(ctx context.Context, stories []domain.Story) (int, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.stories = append(f.stories, stories...)
	return len(stories), nil
}

func (f *fakeArchive) PruneBelow(ctx context.Context, threshold float64) (int64, error) {
	f.pruned = threshold
	return 0, nil
}

func (f *fakeArchive) Close() error { return nil }

func testTopic(dir string) TopicFiles {
	return TopicFiles{
		Key:            "ai-policing",
		Name:           "AI in Policing",
		FeedPath:       filepath.Join(dir, "ai-policing.json"),
		RSSPath:        filepath.Join(dir, "ai-policing.xml"),
		RSSTitle:       "AI in Policing",
		RSSDescription: "Tracked stories",
		RSSLink:        "https://news.example.org",
	}
}

func fetchedArticle(url, title string) domain.Article {
	return domain.Article{
		Title:       title,
		URL:         url,
		Source:      "Example Wire",
		PublishedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
	}
}

func newTestPipeline(source *fakeSource, classifier *fakeClassifier, archive *fakeArchive) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:     source,
		Classifier: classifier,
		Feeds:      feedstore.NewStore(nil),
		Archive:    archive,
		Now:        func() time.Time { return time.Date(2026, 4, 3, 12, 0, 0, 0, time.UTC) },
	})
}

func TestRunGatesOnRelevance(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)

	source := &fakeSource{articles: []domain.Article{
		fetchedArticle("https://x/high", "High"),
		fetchedArticle("https://x/low", "Low"),
	}}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		"https://x/high": {StoryType: domain.TypeIncident, RelevanceScore: 0.8, Tags: []string{}},
		"https://x/low":  {StoryType: domain.TypeGeneral, RelevanceScore: 0.4, Tags: []string{}},
	}}
	archive := &fakeArchive{}

	p := newTestPipeline(source, classifier, archive)
	require.NoError(t, p.Run(context.Background(), RunOptions{
		Topic:   topic,
		Queries: []string{"q"},
	}))

	feed := feedstore.NewStore(nil).Load(topic.FeedPath)
	require.NotNil(t, feed)
	assert.Equal(t, 1, feed.Count)
	assert.Equal(t, "https://x/high", feed.Stories[0].URL)

	// Only qualifying stories reach the archive.
	require.Len(t, archive.stories, 1)
	assert.Equal(t, "https://x/high", archive.stories[0].URL)

	_, err := os.Stat(topic.RSSPath)
	assert.NoError(t, err)
}

func TestRunSkipsKnownURLs(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)
	feeds := feedstore.NewStore(nil)

	known := story.New(fetchedArticle("https://x/known", "Known"),
		&domain.Verdict{StoryType: domain.TypeResearch, RelevanceScore: 0.9},
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	existing := feedstore.Merge(nil, []domain.Story{known}, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, feeds.Save(topic.FeedPath, existing))

	source := &fakeSource{articles: []domain.Article{fetchedArticle("https://x/known", "Known")}}
	classifier := &fakeClassifier{}

	p := newTestPipeline(source, classifier, &fakeArchive{})
	require.NoError(t, p.Run(context.Background(), RunOptions{Topic: topic, Queries: []string{"q"}}))

	// Nothing new, so the classifier never runs and the feed is untouched.
	assert.Equal(t, 0, classifier.calls)
	reloaded := feeds.Load(topic.FeedPath)
	require.NotNil(t, reloaded)
	assert.Equal(t, 1, reloaded.Count)
	assert.True(t, existing.Updated.Equal(reloaded.Updated))
}

func TestRunDefaultsUnclassifiedBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)

	source := &fakeSource{articles: []domain.Article{
		fetchedArticle("https://x/classified", "Classified"),
		fetchedArticle("https://x/failed", "Failed"),
	}}
	// One article has no verdict; it falls back to the 0.5 default and is
	// gated out.
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		"https://x/classified": {StoryType: domain.TypeIncident, RelevanceScore: 0.7, Tags: []string{}},
	}}

	p := newTestPipeline(source, classifier, &fakeArchive{})
	require.NoError(t, p.Run(context.Background(), RunOptions{Topic: topic, Queries: []string{"q"}}))

	feed := feedstore.NewStore(nil).Load(topic.FeedPath)
	require.NotNil(t, feed)
	require.Equal(t, 1, feed.Count)
	assert.Equal(t, "https://x/classified", feed.Stories[0].URL)
}

func TestRunSkipAnalysisBypassesGate(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)

	source := &fakeSource{articles: []domain.Article{fetchedArticle("https://x/a", "A")}}
	classifier := &fakeClassifier{}

	p := newTestPipeline(source, classifier, &fakeArchive{})
	require.NoError(t, p.Run(context.Background(), RunOptions{
		Topic:        topic,
		Queries:      []string{"q"},
		SkipAnalysis: true,
	}))

	assert.Equal(t, 0, classifier.calls)

	feed := feedstore.NewStore(nil).Load(topic.FeedPath)
	require.NotNil(t, feed)
	require.Equal(t, 1, feed.Count)
	assert.Equal(t, domain.TypeGeneral, feed.Stories[0].StoryType)
	assert.Equal(t, domain.DefaultRelevance, feed.Stories[0].RelevanceScore)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)

	source := &fakeSource{articles: []domain.Article{fetchedArticle("https://x/a", "A")}}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		"https://x/a": {StoryType: domain.TypeIncident, RelevanceScore: 0.9},
	}}
	archive := &fakeArchive{}

	p := newTestPipeline(source, classifier, archive)
	require.NoError(t, p.Run(context.Background(), RunOptions{
		Topic:   topic,
		Queries: []string{"q"},
		DryRun:  true,
	}))

	_, err := os.Stat(topic.FeedPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(topic.RSSPath)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, archive.stories)
}

func TestRunSurvivesArchiveFailure(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)

	source := &fakeSource{articles: []domain.Article{fetchedArticle("https://x/a", "A")}}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		"https://x/a": {StoryType: domain.TypeIncident, RelevanceScore: 0.9},
	}}
	archive := &fakeArchive{addErr: errors.New("disk full")}

	p := newTestPipeline(source, classifier, archive)
	require.NoError(t, p.Run(context.Background(), RunOptions{Topic: topic, Queries: []string{"q"}}))

	// Feed still written despite the archive error.
	feed := feedstore.NewStore(nil).Load(topic.FeedPath)
	require.NotNil(t, feed)
	assert.Equal(t, 1, feed.Count)
}

func TestRunMergesIntoExistingFeed(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)
	feeds := feedstore.NewStore(nil)

	old := story.New(fetchedArticle("https://x/old", "Old"),
		&domain.Verdict{StoryType: domain.TypeResearch, RelevanceScore: 0.8},
		time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, feeds.Save(topic.FeedPath, feedstore.Merge(nil, []domain.Story{old},
		time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))))

	source := &fakeSource{articles: []domain.Article{fetchedArticle("https://x/new", "New")}}
	classifier := &fakeClassifier{verdicts: map[string]domain.Verdict{
		"https://x/new": {StoryType: domain.TypeIncident, RelevanceScore: 0.9},
	}}

	p := newTestPipeline(source, classifier, &fakeArchive{})
	require.NoError(t, p.Run(context.Background(), RunOptions{Topic: topic, Queries: []string{"q"}}))

	feed := feeds.Load(topic.FeedPath)
	require.NotNil(t, feed)
	assert.Equal(t, 2, feed.Count)

	urls := []string{feed.Stories[0].URL, feed.Stories[1].URL}
	assert.Contains(t, urls, "https://x/old")
	assert.Contains(t, urls, "https://x/new")
}

func TestCleanupPrunesFeedsAndArchive(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)
	feeds := feedstore.NewStore(nil)

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	stories := []domain.Story{
		story.New(fetchedArticle("https://x/keep", "Keep"),
			&domain.Verdict{StoryType: domain.TypeResearch, RelevanceScore: 0.8}, now),
		story.New(fetchedArticle("https://x/drop", "Drop"),
			&domain.Verdict{StoryType: domain.TypeGeneral, RelevanceScore: 0.3}, now),
	}
	require.NoError(t, feeds.Save(topic.FeedPath, feedstore.Merge(nil, stories, now)))

	archive := &fakeArchive{}
	p := newTestPipeline(&fakeSource{}, &fakeClassifier{}, archive)
	require.NoError(t, p.Cleanup(context.Background(), []TopicFiles{topic}, false))

	feed := feeds.Load(topic.FeedPath)
	require.NotNil(t, feed)
	require.Equal(t, 1, feed.Count)
	assert.Equal(t, "https://x/keep", feed.Stories[0].URL)
	assert.Equal(t, domain.RelevanceThreshold, archive.pruned)

	_, err := os.Stat(topic.RSSPath)
	assert.NoError(t, err)
}

func TestCleanupDryRunLeavesFilesAlone(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)
	feeds := feedstore.NewStore(nil)

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	stories := []domain.Story{
		story.New(fetchedArticle("https://x/drop", "Drop"),
			&domain.Verdict{StoryType: domain.TypeGeneral, RelevanceScore: 0.3}, now),
	}
	require.NoError(t, feeds.Save(topic.FeedPath, feedstore.Merge(nil, stories, now)))

	archive := &fakeArchive{}
	p := newTestPipeline(&fakeSource{}, &fakeClassifier{}, archive)
	require.NoError(t, p.Cleanup(context.Background(), []TopicFiles{topic}, true))

	feed := feeds.Load(topic.FeedPath)
	require.NotNil(t, feed)
	assert.Equal(t, 1, feed.Count)
	assert.Zero(t, archive.pruned)
}

func TestRegenerateRSS(t *testing.T) {
	dir := t.TempDir()
	topic := testTopic(dir)
	feeds := feedstore.NewStore(nil)

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	stories := []domain.Story{
		story.New(fetchedArticle("https://x/a", "A"),
			&domain.Verdict{StoryType: domain.TypeResearch, RelevanceScore: 0.8}, now),
	}
	require.NoError(t, feeds.Save(topic.FeedPath, feedstore.Merge(nil, stories, now)))

	p := newTestPipeline(&fakeSource{}, &fakeClassifier{}, &fakeArchive{})
	require.NoError(t, p.RegenerateRSS([]TopicFiles{topic}))

	raw, err := os.ReadFile(topic.RSSPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<rss")
	assert.Contains(t, string(raw), "https://x/a")
}

func TestRegenerateRSSSkipsMissingFeeds(t *testing.T) {
	topic := testTopic(t.TempDir())

	p := newTestPipeline(&fakeSource{}, &fakeClassifier{}, &fakeArchive{})
	require.NoError(t, p.RegenerateRSS([]TopicFiles{topic}))

	_, err := os.Stat(topic.RSSPath)
	assert.True(t, os.IsNotExist(err))
}
