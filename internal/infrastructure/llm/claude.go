package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"newswatch/internal/config"
	"newswatch/internal/domain"
	"newswatch/internal/ports"
)

const anthropicVersion = "2023-06-01"

// Search APIs append "[+N chars]" to truncated content fields.
var truncationMarker = regexp.MustCompile(`\s*\[\+\d+ chars\]$`)

// ClaudeClient classifies articles through an Anthropic-style messages API.
type ClaudeClient struct {
	baseURL    string
	model      string
	apiKey     string
	maxTokens  int
	batchSize  int
	batchDelay time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Classifier = (*ClaudeClient)(nil)

// NewClaudeClient builds a classifier client from configuration.
func NewClaudeClient(cfg config.ClaudeConfig, logger *slog.Logger) *ClaudeClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	return &ClaudeClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxTokens:  maxTokens,
		batchSize:  batchSize,
		batchDelay: cfg.BatchDelay,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Analyze sends one article to the model and parses its JSON verdict. Any
// transport error, malformed response, or missing required field yields an
// error; the caller treats it as "no classification", never as fatal.
func (c *ClaudeClient) Analyze(ctx context.Context, article domain.Article, prompt string) (domain.Verdict, error) {
	if c.apiKey == "" || c.baseURL == "" || c.model == "" {
		return domain.Verdict{}, fmt.Errorf("claude client misconfigured")
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    safePrompt(prompt),
		Messages:  []message{{Role: "user", Content: buildUserMessage(article)}},
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Verdict{}, fmt.Errorf("claude error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Content) != 1 || parsed.Content[0].Type != "text" {
		return domain.Verdict{}, fmt.Errorf("expected a single text block, got %d blocks", len(parsed.Content))
	}

	return parseVerdict(parsed.Content[0].Text)
}

// AnalyzeBatch partitions articles into fixed-size batches, classifies each
// batch concurrently, and sleeps between batches (not after the last).
// Verdicts are keyed by article URL; failures are logged and absent.
func (c *ClaudeClient) AnalyzeBatch(ctx context.Context, articles []domain.Article, prompt string, onProgress func(done, total int)) map[string]domain.Verdict {
	verdicts := make(map[string]domain.Verdict, len(articles))
	total := len(articles)

	var (
		mu   sync.Mutex
		done int
	)

	for start := 0; start < total; start += c.batchSize {
		end := start + c.batchSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for _, article := range articles[start:end] {
			wg.Add(1)
			go func(a domain.Article) {
				defer wg.Done()

				verdict, err := c.Analyze(ctx, a, prompt)

				mu.Lock()
				done++
				if err != nil {
					c.warn("classification failed", "url", a.URL, "error", err)
				} else {
					verdicts[a.URL] = verdict
				}
				if onProgress != nil {
					onProgress(done, total)
				}
				mu.Unlock()
			}(article)
		}
		wg.Wait()

		if end < total && c.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return verdicts
			case <-time.After(c.batchDelay):
			}
		}
	}

	return verdicts
}

func buildUserMessage(article domain.Article) string {
	content := truncationMarker.ReplaceAllString(article.Content, "")

	var b strings.Builder
	b.WriteString("Article:\n")
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	fmt.Fprintf(&b, "Source: %s\n", article.Source)
	fmt.Fprintf(&b, "Published: %s\n", article.PublishedAt.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Description: %s\n", article.Description)
	fmt.Fprintf(&b, "Content: %s\n", content)
	b.WriteString("\nRespond with a single raw JSON object and nothing else. No markdown fences. Shape:\n")
	b.WriteString(`{"story_type": "research" | "incident" | "general" | "investigative", ` +
		`"relevance_score": <number between 0 and 1>, ` +
		`"key_entities": "<comma-separated names>", ` +
		`"location": "<place or empty string>", ` +
		`"tags": ["<1-5 short labels>"], ` +
		`"needs_review": 0 | 1}`)
	return b.String()
}

// parseVerdict decodes the model's bare JSON object. story_type must be
// present and relevance_score must be numeric; anything else is a
// classification failure.
func parseVerdict(raw string) (domain.Verdict, error) {
	var parsed struct {
		StoryType      string   `json:"story_type"`
		RelevanceScore *float64 `json:"relevance_score"`
		KeyEntities    string   `json:"key_entities"`
		Location       string   `json:"location"`
		Tags           []string `json:"tags"`
		NeedsReview    int      `json:"needs_review"`
	}

	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	if parsed.StoryType == "" {
		return domain.Verdict{}, fmt.Errorf("verdict missing story_type")
	}
	if parsed.RelevanceScore == nil {
		return domain.Verdict{}, fmt.Errorf("verdict missing relevance_score")
	}

	score := *parsed.RelevanceScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return domain.Verdict{
		StoryType:      domain.StoryType(parsed.StoryType),
		RelevanceScore: score,
		KeyEntities:    parsed.KeyEntities,
		Location:       parsed.Location,
		Tags:           parsed.Tags,
		NeedsReview:    parsed.NeedsReview,
	}, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You classify news articles for topical relevance."
	}
	return prompt
}

func (c *ClaudeClient) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
