package feedstore

import (
	"encoding/xml"
	"fmt"
	"time"

	"newswatch/internal/domain"
)

// rssItemCap bounds the number of items emitted per channel.
const rssItemCap = 50

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	Category    string  `xml:"category,omitempty"`
	PubDate     string  `xml:"pubDate,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// RenderRSS derives an RSS 2.0 document from a feed. The feed is already
// date-descending, so the cap keeps the most recent stories. Text escaping
// is handled by the XML encoder; story ids serve as stable guids.
func RenderRSS(feed *domain.Feed, title, description, link string) ([]byte, error) {
	stories := feed.Stories
	if len(stories) > rssItemCap {
		stories = stories[:rssItemCap]
	}

	items := make([]rssItem, 0, len(stories))
	for _, s := range stories {
		item := rssItem{
			Title:       s.Title,
			Link:        s.URL,
			GUID:        rssGUID{IsPermaLink: "false", Value: s.ID},
			Description: s.Summary,
			Category:    string(s.StoryType),
		}
		if day, err := time.Parse("2006-01-02", s.Date); err == nil {
			item.PubDate = day.UTC().Format(time.RFC1123Z)
		}
		items = append(items, item)
	}

	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:         title,
			Link:          link,
			Description:   description,
			LastBuildDate: feed.Updated.UTC().Format(time.RFC1123Z),
			Items:         items,
		},
	}

	raw, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rss: %w", err)
	}

	return append([]byte(xml.Header), raw...), nil
}
