package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Blog struct {
		ID       string        `yaml:"id" json:"id" jsonschema:"required,description=Target blog identifier"`
		Endpoint string        `yaml:"endpoint" json:"endpoint" jsonschema:"default=https://www.googleapis.com/blogger/v3,description=Blogger API base URL"`
		Labels   []string      `yaml:"labels" json:"labels" jsonschema:"description=Labels attached to every published post"`
		Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Publish request timeout"`
	} `yaml:"blog" json:"blog" jsonschema:"description=Publishing platform configuration"`

	Sources struct {
		FeedURL    string        `yaml:"feed_url" json:"feed_url" jsonschema:"required,description=RSS feed URL"`
		APIURL     string        `yaml:"api_url" json:"api_url" jsonschema:"required,description=JSON news API URL"`
		Categories []string      `yaml:"categories" json:"categories" jsonschema:"description=Category allow-list for API items"`
		Timeout    time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Fetch timeout per source"`
		UserAgent  string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Arthapost/1.0,description=User agent for source requests"`
	} `yaml:"sources" json:"sources" jsonschema:"description=News source configuration"`

	Store struct {
		Type      string `yaml:"type" json:"type" jsonschema:"default=file,enum=file,enum=sqlite,description=Dedup store backend"`
		Path      string `yaml:"path" json:"path" jsonschema:"default=posted_ids.json,description=Dedup file path (file backend)"`
		DSN       string `yaml:"dsn" json:"dsn" jsonschema:"default=file:arthapost.db?cache=shared&mode=rwc,description=Database connection string (sqlite backend)"`
		Retention int    `yaml:"retention" json:"retention" jsonschema:"default=200,description=Number of posted ids to keep"`
	} `yaml:"store" json:"store" jsonschema:"description=Dedup store configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for article rewriting"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Content extraction configuration"`

	Run struct {
		MaxPosts  int           `yaml:"max_posts" json:"max_posts" jsonschema:"default=999,description=Maximum articles processed per run"`
		PostDelay time.Duration `yaml:"post_delay" json:"post_delay" jsonschema:"default=10s,description=Pacing delay after each successful publish"`
	} `yaml:"run" json:"run" jsonschema:"description=Run loop configuration"`

	Auth struct {
		ServiceAccountEnv string `yaml:"service_account_env" json:"service_account_env" jsonschema:"default=SERVICE_ACCOUNT_JSON,description=Env var holding base64 service account key"`
		TokenFile         string `yaml:"token_file" json:"token_file" jsonschema:"description=Cached OAuth token file path"`
		StaticTokenEnv    string `yaml:"static_token_env" json:"static_token_env" jsonschema:"default=BLOGGER_TOKEN,description=Env var holding a static access token"`
	} `yaml:"auth" json:"auth" jsonschema:"description=Publisher authentication strategies"`
}

// LLMConfig holds LLM configuration for article rewriting
type LLMConfig struct {
	Endpoint     string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model        string        `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. gemini-2.0-flash)"`
	Temperature  float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=2000,description=Maximum tokens in response"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt override (optional)"`
}

// ExtractionConfig holds content extraction settings for items without a body
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable content extraction fallback"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Arthapost/1.0,description=User agent for extraction requests"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for blog
	if cfg.Blog.Endpoint == "" {
		cfg.Blog.Endpoint = "https://www.googleapis.com/blogger/v3"
	}
	if len(cfg.Blog.Labels) == 0 {
		cfg.Blog.Labels = []string{"AI-Edited", "Finance"}
	}
	if cfg.Blog.Timeout == 0 {
		cfg.Blog.Timeout = 30 * time.Second
	}

	// set defaults for sources
	if len(cfg.Sources.Categories) == 0 {
		cfg.Sources.Categories = []string{"सेयर बजार", "अर्थतन्त्र"}
	}
	if cfg.Sources.Timeout == 0 {
		cfg.Sources.Timeout = 30 * time.Second
	}
	if cfg.Sources.UserAgent == "" {
		cfg.Sources.UserAgent = "Arthapost/1.0"
	}

	// set defaults for store
	if cfg.Store.Type == "" {
		cfg.Store.Type = "file"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "posted_ids.json"
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "file:arthapost.db?cache=shared&mode=rwc"
	}
	if cfg.Store.Retention == 0 {
		cfg.Store.Retention = 200
	}

	// set defaults for LLM
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	// set defaults for extraction
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 30 * time.Second
	}
	if cfg.Extraction.MinTextLength == 0 {
		cfg.Extraction.MinTextLength = 100
	}
	if cfg.Extraction.UserAgent == "" {
		cfg.Extraction.UserAgent = "Arthapost/1.0"
	}

	// set defaults for run loop
	if cfg.Run.MaxPosts == 0 {
		cfg.Run.MaxPosts = 999
	}
	if cfg.Run.PostDelay == 0 {
		cfg.Run.PostDelay = 10 * time.Second
	}

	// set defaults for auth
	if cfg.Auth.ServiceAccountEnv == "" {
		cfg.Auth.ServiceAccountEnv = "SERVICE_ACCOUNT_JSON"
	}
	if cfg.Auth.StaticTokenEnv == "" {
		cfg.Auth.StaticTokenEnv = "BLOGGER_TOKEN"
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Blog.ID == "" {
		return fmt.Errorf("blog.id is required")
	}
	if cfg.Sources.FeedURL == "" {
		return fmt.Errorf("sources.feed_url is required")
	}
	if cfg.Sources.APIURL == "" {
		return fmt.Errorf("sources.api_url is required")
	}

	if cfg.Store.Type != "file" && cfg.Store.Type != "sqlite" {
		return fmt.Errorf("store.type must be file or sqlite")
	}
	if cfg.Store.Retention < 1 {
		return fmt.Errorf("store.retention must be positive")
	}

	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	if cfg.Run.MaxPosts < 1 {
		return fmt.Errorf("run.max_posts must be positive")
	}
	if cfg.Run.PostDelay < 0 {
		return fmt.Errorf("run.post_delay must be non-negative")
	}

	if cfg.Extraction.Enabled {
		if cfg.Extraction.Timeout < time.Second {
			return fmt.Errorf("extraction timeout must be at least 1 second")
		}
		if cfg.Extraction.MinTextLength < 0 {
			return fmt.Errorf("extraction min_text_length must be non-negative")
		}
	}

	return nil
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}

// GetExtractionConfig returns content extraction configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}
