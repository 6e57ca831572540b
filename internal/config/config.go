package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "NEWSWATCH_CONFIG"
	dataDirEnv      = "NEWSWATCH_DATA_DIR"
	logLevelEnv     = "NEWSWATCH_LOG_LEVEL"
	newsAPIKeyEnv   = "NEWS_API_KEY"
	claudeAPIKeyEnv = "ANTHROPIC_API_KEY"
	claudeModelEnv  = "CLAUDE_MODEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Search  SearchConfig  `yaml:"search"`
	Claude  ClaudeConfig  `yaml:"claude"`
	Storage StorageConfig `yaml:"storage"`
	Site    SiteConfig    `yaml:"site"`
	Topics  []TopicConfig `yaml:"topics"`
}

// LoggingConfig controls console log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SearchConfig describes the article-search API connection and defaults.
type SearchConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	APIKey     string        `yaml:"apiKey"`
	Language   string        `yaml:"language"`
	SortBy     string        `yaml:"sortBy"`
	PageSize   int           `yaml:"pageSize"`
	DaysBack   int           `yaml:"daysBack"`
	QueryDelay time.Duration `yaml:"queryDelay"`
}

// ClaudeConfig defines how to contact the classification model API.
type ClaudeConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"apiKey"`
	MaxTokens  int           `yaml:"maxTokens"`
	BatchSize  int           `yaml:"batchSize"`
	BatchDelay time.Duration `yaml:"batchDelay"`
}

// SiteConfig names the site the feeds are published under; RSS channels
// link back to it.
type SiteConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// StorageConfig locates the feed files and the embedded archive.
type StorageConfig struct {
	DataDir     string `yaml:"dataDir"`
	ArchiveFile string `yaml:"archiveFile"`
}

// TopicConfig describes one named subject area: its search queries, output
// file names, and classifier instruction prompt. The table is static; it is
// read at startup and never mutated.
type TopicConfig struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Queries  []string `yaml:"queries"`
	FeedFile string   `yaml:"feedFile"`
	RSSFile  string   `yaml:"rssFile"`
	Prompt   string   `yaml:"prompt"`
}

// Topic resolves a topic key against the configured table.
func (c Config) Topic(key string) (TopicConfig, bool) {
	for _, t := range c.Topics {
		if t.Key == key {
			return t, true
		}
	}
	return TopicConfig{}, false
}

// FeedPath resolves the JSON feed location for a topic.
func (c Config) FeedPath(t TopicConfig) string {
	return filepath.Join(c.Storage.DataDir, t.FeedFile)
}

// RSSPath resolves the RSS document location for a topic.
func (c Config) RSSPath(t TopicConfig) string {
	return filepath.Join(c.Storage.DataDir, t.RSSFile)
}

// ArchivePath resolves the embedded archive database location.
func (c Config) ArchivePath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.ArchiveFile)
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Topics) == 0 {
		cfg.Topics = defaultConfig().Topics
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		c.Search.APIKey = v
	}

	if v := os.Getenv(claudeAPIKeyEnv); v != "" {
		c.Claude.APIKey = v
	}

	if v := os.Getenv(claudeModelEnv); v != "" {
		c.Claude.Model = v
	}

	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Search.BaseURL != "" {
		base.Search.BaseURL = override.Search.BaseURL
	}
	if override.Search.APIKey != "" {
		base.Search.APIKey = override.Search.APIKey
	}
	if override.Search.Language != "" {
		base.Search.Language = override.Search.Language
	}
	if override.Search.SortBy != "" {
		base.Search.SortBy = override.Search.SortBy
	}
	if override.Search.PageSize > 0 {
		base.Search.PageSize = override.Search.PageSize
	}
	if override.Search.DaysBack > 0 {
		base.Search.DaysBack = override.Search.DaysBack
	}
	if override.Search.QueryDelay > 0 {
		base.Search.QueryDelay = override.Search.QueryDelay
	}

	if override.Claude.BaseURL != "" {
		base.Claude.BaseURL = override.Claude.BaseURL
	}
	if override.Claude.Model != "" {
		base.Claude.Model = override.Claude.Model
	}
	if override.Claude.APIKey != "" {
		base.Claude.APIKey = override.Claude.APIKey
	}
	if override.Claude.MaxTokens > 0 {
		base.Claude.MaxTokens = override.Claude.MaxTokens
	}
	if override.Claude.BatchSize > 0 {
		base.Claude.BatchSize = override.Claude.BatchSize
	}
	if override.Claude.BatchDelay > 0 {
		base.Claude.BatchDelay = override.Claude.BatchDelay
	}

	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}
	if override.Storage.ArchiveFile != "" {
		base.Storage.ArchiveFile = override.Storage.ArchiveFile
	}

	if override.Site.BaseURL != "" {
		base.Site.BaseURL = override.Site.BaseURL
	}

	if len(override.Topics) > 0 {
		base.Topics = override.Topics
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Search: SearchConfig{
			BaseURL:    "https://newsapi.org/v2",
			Language:   "en",
			SortBy:     "publishedAt",
			PageSize:   100,
			DaysBack:   7,
			QueryDelay: 500 * time.Millisecond,
		},
		Claude: ClaudeConfig{
			BaseURL:    "https://api.anthropic.com",
			Model:      "claude-3-5-haiku-latest",
			MaxTokens:  1024,
			BatchSize:  5,
			BatchDelay: time.Second,
		},
		Storage: StorageConfig{
			DataDir:     "data",
			ArchiveFile: "news-archive.db",
		},
		Site: SiteConfig{BaseURL: "https://news.example.org"},
		Topics: []TopicConfig{
			{
				Key:  "ai-policing",
				Name: "AI in Policing",
				Queries: []string{
					`"predictive policing"`,
					`"facial recognition" police`,
					`"algorithmic policing"`,
					`police "artificial intelligence" surveillance`,
				},
				FeedFile: "ai-policing-news.json",
				RSSFile:  "ai-policing.xml",
				Prompt: "You review news coverage of artificial intelligence in policing: " +
					"predictive policing systems, facial recognition deployments, algorithmic " +
					"surveillance, and automated decision tools used by law enforcement. Judge " +
					"whether the article is substantively about police use of such technology, " +
					"not merely a passing mention.",
			},
			{
				Key:  "ai-courts",
				Name: "AI in the Courts",
				Queries: []string{
					`"risk assessment" algorithm court`,
					`"sentencing algorithm"`,
					`"artificial intelligence" courtroom evidence`,
				},
				FeedFile: "ai-courts-news.json",
				RSSFile:  "ai-courts.xml",
				Prompt: "You review news coverage of artificial intelligence in the justice " +
					"system: pretrial risk assessment tools, sentencing algorithms, and AI-derived " +
					"evidence in court. Judge whether the article substantively concerns judicial " +
					"use of such technology.",
			},
		},
	}
}
