// Package storage implements the durable story archive on an embedded
// SQLite database. The archive is a best-effort mirror of the JSON feeds:
// a failed write degrades reporting, never a pipeline run.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"newswatch/internal/domain"
	"newswatch/internal/ports"
)

// Archive persists stories into a single SQLite file shared by all topics.
type Archive struct {
	db *sql.DB
}

var _ ports.StoryArchive = (*Archive)(nil)

// Open creates or opens the archive database and ensures its schema.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &Archive{db: db}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return a, nil
}

func (a *Archive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		url TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		source TEXT,
		date TEXT,
		date_discovered TEXT,
		summary TEXT,
		story_type TEXT,
		relevance_score REAL,
		key_entities TEXT,
		location TEXT,
		tags TEXT,
		needs_review INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_stories_date ON stories(date);
	CREATE INDEX IF NOT EXISTS idx_stories_source ON stories(source);
	CREATE INDEX IF NOT EXISTS idx_stories_type ON stories(story_type);
	`

	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// HasStory reports whether a story with this URL is already archived.
func (a *Archive) HasStory(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("stories").
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("query story: %w", err)
	}
	return count > 0, nil
}

// AddStory upserts one story keyed by id. Safe to retry.
func (a *Archive) AddStory(ctx context.Context, story domain.Story) error {
	query, args, err := insertStory(story)
	if err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert story: %w", err)
	}
	return nil
}

// AddStories mirrors a batch of stories inside one transaction and returns
// how many were not previously archived. Rows already present are replaced
// in place without counting.
func (a *Archive) AddStories(ctx context.Context, stories []domain.Story) (int, error) {
	if len(stories) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, story := range stories {
		existsQuery, existsArgs, err := sq.Select("COUNT(*)").
			From("stories").
			Where(sq.Eq{"url": story.URL}).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build query: %w", err)
		}

		var count int
		if err := tx.QueryRowContext(ctx, existsQuery, existsArgs...).Scan(&count); err != nil {
			return 0, fmt.Errorf("check story %s: %w", story.URL, err)
		}

		query, args, err := insertStory(story)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("upsert story %s: %w", story.URL, err)
		}

		if count == 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// PruneBelow deletes archived stories scoring under the threshold.
func (a *Archive) PruneBelow(ctx context.Context, threshold float64) (int64, error) {
	query, args, err := sq.Delete("stories").
		Where(sq.Lt{"relevance_score": threshold}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune stories: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

// Stats reports the total row count and a per-story-type breakdown.
func (a *Archive) Stats(ctx context.Context) (int, map[string]int, error) {
	totalQuery, totalArgs, err := sq.Select("COUNT(*)").From("stories").ToSql()
	if err != nil {
		return 0, nil, fmt.Errorf("build query: %w", err)
	}

	var total int
	if err := a.db.QueryRowContext(ctx, totalQuery, totalArgs...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count stories: %w", err)
	}

	query, args, err := sq.Select("story_type", "COUNT(*)").
		From("stories").
		GroupBy("story_type").
		ToSql()
	if err != nil {
		return 0, nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	byType := map[string]int{}
	for rows.Next() {
		var storyType string
		var count int
		if err := rows.Scan(&storyType, &count); err != nil {
			return 0, nil, fmt.Errorf("scan stats row: %w", err)
		}
		byType[storyType] = count
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("rows iteration: %w", err)
	}

	return total, byType, nil
}

func insertStory(story domain.Story) (string, []interface{}, error) {
	tags, err := json.Marshal(story.Tags)
	if err != nil {
		return "", nil, fmt.Errorf("marshal tags: %w", err)
	}

	query, args, err := sq.Insert("stories").
		Options("OR REPLACE").
		Columns("id", "url", "title", "source", "date", "date_discovered",
			"summary", "story_type", "relevance_score", "key_entities",
			"location", "tags", "needs_review").
		Values(story.ID, story.URL, story.Title, story.Source, story.Date,
			story.DateDiscovered, story.Summary, string(story.StoryType),
			story.RelevanceScore, story.KeyEntities, story.Location,
			string(tags), story.NeedsReview).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return query, args, nil
}
