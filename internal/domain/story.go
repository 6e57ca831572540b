package domain

import "time"

// StoryType is the classifier-assigned category of a story.
type StoryType string

const (
	TypeResearch      StoryType = "research"
	TypeIncident      StoryType = "incident"
	TypeGeneral       StoryType = "general"
	TypeInvestigative StoryType = "investigative"
)

// RelevanceThreshold is the minimum classifier score a story needs to enter
// a feed or the archive. The cleanup command prunes with the same value.
const RelevanceThreshold = 0.6

// DefaultRelevance is assigned when no classification was produced.
const DefaultRelevance = 0.5

// Article is a raw search result from the upstream article API.
type Article struct {
	Title       string
	Description string
	Content     string
	URL         string
	Source      string
	PublishedAt time.Time
}

// Verdict is the classifier's structured output for one article.
type Verdict struct {
	StoryType      StoryType
	RelevanceScore float64
	KeyEntities    string
	Location       string
	Tags           []string
	NeedsReview    int
}

// Story is a normalized, classified article ready for display and archival.
// Dates carry day granularity as ISO strings so feed ordering reduces to a
// lexicographic comparison.
type Story struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	Date           string    `json:"date"`
	DateDiscovered string    `json:"date_discovered"`
	Summary        string    `json:"summary"`
	StoryType      StoryType `json:"story_type"`
	RelevanceScore float64   `json:"relevance_score"`
	KeyEntities    string    `json:"key_entities"`
	Location       string    `json:"location,omitempty"`
	Tags           []string  `json:"tags"`
	NeedsReview    int       `json:"needs_review"`
}

// Feed is the persisted story collection for one topic, sorted by date
// descending. Count always equals len(Stories).
type Feed struct {
	Updated time.Time `json:"updated"`
	Count   int       `json:"count"`
	Stories []Story   `json:"stories"`
}
