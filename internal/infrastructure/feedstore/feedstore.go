// Package feedstore persists topic feeds: the canonical pretty-printed JSON
// file and the derived RSS document.
package feedstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"newswatch/internal/domain"
)

// Store reads and writes feed files. The pipeline is the single writer, so
// writes are plain overwrites.
type Store struct {
	logger *slog.Logger
}

// NewStore wires an optional logger.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Load reads a feed file. An absent file is not an error: the feed simply
// does not exist yet and nil is returned. A malformed file is logged and
// also treated as absent, so a corrupted feed never aborts a run.
func (s *Store) Load(path string) *domain.Feed {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warn("cannot read feed", "path", path, "error", err)
		}
		return nil
	}

	var feed domain.Feed
	if err := json.Unmarshal(raw, &feed); err != nil {
		s.warn("cannot parse feed", "path", path, "error", err)
		return nil
	}

	return &feed
}

// Save overwrites the feed file with pretty-printed JSON, creating parent
// directories as needed.
func (s *Store) Save(path string, feed *domain.Feed) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create feed directory: %w", err)
	}

	raw, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}

	return nil
}

// SaveRSS overwrites the derived RSS document, creating parent directories
// as needed.
func (s *Store) SaveRSS(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create rss directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write rss: %w", err)
	}
	return nil
}

// Merge appends stories whose id is not already present in the existing feed
// (nil means empty), then sorts by date descending. The sort is stable and
// fresh stories are placed before carried-over ones, so same-day ties keep
// new stories first. Merging the same input twice is a no-op after the first
// call.
func Merge(existing *domain.Feed, fresh []domain.Story, now time.Time) *domain.Feed {
	present := map[string]struct{}{}
	var carried []domain.Story
	if existing != nil {
		carried = existing.Stories
		for _, s := range carried {
			present[s.ID] = struct{}{}
		}
	}

	combined := make([]domain.Story, 0, len(fresh)+len(carried))
	for _, s := range fresh {
		if _, dup := present[s.ID]; dup {
			continue
		}
		present[s.ID] = struct{}{}
		combined = append(combined, s)
	}
	combined = append(combined, carried...)

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Date > combined[j].Date
	})

	return &domain.Feed{
		Updated: now.UTC(),
		Count:   len(combined),
		Stories: combined,
	}
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
