// Package story converts raw articles and classifier verdicts into
// normalized Story records. Everything here is pure: no I/O, no clock
// reads — the discovery time is injected by the caller.
package story

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newswatch/internal/domain"
)

// ID returns the deterministic fingerprint for a source URL: the first 16
// bytes of its SHA-256 digest, hex encoded.
func ID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:16])
}

// New assembles a Story from an article and an optional verdict. A nil
// verdict (classifier failure or analysis skipped) falls back to story type
// "general" with the default relevance score.
func New(article domain.Article, verdict *domain.Verdict, now time.Time) domain.Story {
	title := StripHTML(article.Title)
	source := StripHTML(article.Source)

	date := now.UTC().Format("2006-01-02")
	if !article.PublishedAt.IsZero() {
		date = article.PublishedAt.UTC().Format("2006-01-02")
	}

	s := domain.Story{
		ID:             ID(article.URL),
		URL:            article.URL,
		Title:          title,
		Source:         source,
		Date:           date,
		DateDiscovered: now.UTC().Format("2006-01-02"),
		Summary:        buildSummary(article.URL, title, source),
		StoryType:      domain.TypeGeneral,
		RelevanceScore: domain.DefaultRelevance,
		Tags:           []string{},
	}

	if verdict != nil {
		s.StoryType = verdict.StoryType
		s.RelevanceScore = verdict.RelevanceScore
		s.KeyEntities = verdict.KeyEntities
		s.Location = verdict.Location
		s.NeedsReview = verdict.NeedsReview
		if len(verdict.Tags) > 0 {
			s.Tags = verdict.Tags
		}
	}

	return s
}

// buildSummary renders the display snippet embedded in feeds: a linked title
// followed by the publisher name. All text is HTML-escaped.
func buildSummary(url, title, source string) string {
	snippet := fmt.Sprintf(`<p><a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(title))
	if source != "" {
		snippet += fmt.Sprintf(" (%s)", html.EscapeString(source))
	}
	return snippet + "</p>"
}

// StripHTML flattens any markup the upstream API leaks into text fields.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
