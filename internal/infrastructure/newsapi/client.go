package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newswatch/internal/config"
	"newswatch/internal/domain"
	"newswatch/internal/ports"
)

// Client searches the article API's /everything endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	sortBy     string
	pageSize   int
	daysBack   int
	queryDelay time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

var _ ports.ArticleSource = (*Client)(nil)

// NewClient builds a search client from configuration.
func NewClient(cfg config.SearchConfig, logger *slog.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	daysBack := cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		sortBy:     cfg.SortBy,
		pageSize:   pageSize,
		daysBack:   daysBack,
		queryDelay: cfg.QueryDelay,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

type searchResponse struct {
	Status       string       `json:"status"`
	Message      string       `json:"message"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
}

type apiArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Search runs one query over the trailing window and returns its articles.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Article, error) {
	endpoint, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("build search url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "newswatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request articles: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed searchResponse
	if resp.StatusCode != http.StatusOK {
		// The API wraps errors in its own envelope; prefer its message over
		// the bare status line when the body parses.
		if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil && parsed.Message != "" {
			return nil, fmt.Errorf("search api: %s", parsed.Message)
		}
		return nil, fmt.Errorf("search api: %s", resp.Status)
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]domain.Article, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		if a.URL == "" {
			continue
		}
		articles = append(articles, domain.Article{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}

	return articles, nil
}

// FetchAll runs each query in sequence, deduplicates results by URL (first
// occurrence wins), and sleeps between queries to respect the upstream rate
// limit. A failed query is logged and contributes zero results.
func (c *Client) FetchAll(ctx context.Context, queries []string) ([]domain.Article, error) {
	seen := map[string]struct{}{}
	var aggregated []domain.Article

	for i, query := range queries {
		results, err := c.Search(ctx, query)
		if err != nil {
			c.warn("query failed", "query", query, "error", err)
			results = nil
		}

		for _, article := range results {
			if _, dup := seen[article.URL]; dup {
				continue
			}
			seen[article.URL] = struct{}{}
			aggregated = append(aggregated, article)
		}
		c.debug("query done", "query", query, "results", len(results), "total", len(aggregated))

		if i < len(queries)-1 && c.queryDelay > 0 {
			select {
			case <-ctx.Done():
				return aggregated, ctx.Err()
			case <-time.After(c.queryDelay):
			}
		}
	}

	return aggregated, nil
}

func (c *Client) buildSearchURL(query string) (string, error) {
	parsed, err := url.Parse(c.baseURL + "/everything")
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", c.baseURL, err)
	}

	to := c.now().UTC()
	from := to.AddDate(0, 0, -c.daysBack)

	q := parsed.Query()
	q.Set("q", query)
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	if c.language != "" {
		q.Set("language", c.language)
	}
	if c.sortBy != "" {
		q.Set("sortBy", c.sortBy)
	}
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("apiKey", c.apiKey)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
