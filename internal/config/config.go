package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Batch    BatchConfig    `yaml:"batch"`
	Sampling SamplingConfig `yaml:"sampling"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type BatchConfig struct {
	Size           int           `yaml:"size,omitempty"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay,omitempty"`
	RetryAttempts  int           `yaml:"retry_attempts,omitempty"`
	RetryDelay     time.Duration `yaml:"retry_delay,omitempty"`
	Temperature    float64       `yaml:"temperature,omitempty"`
	MaxTokens      int           `yaml:"max_tokens,omitempty"`
	ErrorCap       int           `yaml:"error_cap,omitempty"`
	EnableSearch   bool          `yaml:"enable_search,omitempty"`
}

type SamplingConfig struct {
	TargetSize   int `yaml:"target_size,omitempty"`
	MinResponses int `yaml:"min_responses,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type CatalogConfig struct {
	Path string `yaml:"path,omitempty"`
}

const (
	DefaultBatchSize      = 20
	DefaultRateLimitDelay = time.Second
	DefaultRetryAttempts  = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 2000
	DefaultErrorCap       = 20
	DefaultSampleSize     = 20
	DefaultMinResponses   = 50
	DefaultCatalogPath    = "data/query_catalog.json"
)

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Default returns a config with defaults applied and env keys merged, for
// running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LLM.Providers == nil {
		c.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(c.LLM.DefaultProvider) == "" {
		c.LLM.DefaultProvider = "openai"
	}

	if c.Batch.Size <= 0 {
		c.Batch.Size = DefaultBatchSize
	}
	if c.Batch.RateLimitDelay <= 0 {
		c.Batch.RateLimitDelay = DefaultRateLimitDelay
	}
	if c.Batch.RetryAttempts <= 0 {
		c.Batch.RetryAttempts = DefaultRetryAttempts
	}
	if c.Batch.RetryDelay <= 0 {
		c.Batch.RetryDelay = DefaultRetryDelay
	}
	if c.Batch.Temperature <= 0 {
		c.Batch.Temperature = DefaultTemperature
	}
	if c.Batch.MaxTokens <= 0 {
		c.Batch.MaxTokens = DefaultMaxTokens
	}
	if c.Batch.ErrorCap <= 0 {
		c.Batch.ErrorCap = DefaultErrorCap
	}

	if c.Sampling.TargetSize <= 0 {
		c.Sampling.TargetSize = DefaultSampleSize
	}
	if c.Sampling.MinResponses <= 0 {
		c.Sampling.MinResponses = DefaultMinResponses
	}

	if strings.TrimSpace(c.Catalog.Path) == "" {
		c.Catalog.Path = DefaultCatalogPath
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := c.LLM.Providers["openai"]
		p.APIKey = v
		c.LLM.Providers["openai"] = p
	}

	// ANTHROPIC_AUTH_TOKEN is not merged here; the claude provider reads
	// it directly so it is sent as a bearer token, not an API key.
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := c.LLM.Providers["claude"]
		p.APIKey = v
		c.LLM.Providers["claude"] = p
	}
}
