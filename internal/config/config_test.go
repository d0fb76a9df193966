package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "llm:\n  default_provider: openai\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Batch.Size != DefaultBatchSize {
		t.Fatalf("Batch.Size: got %d want %d", cfg.Batch.Size, DefaultBatchSize)
	}
	if cfg.Batch.RateLimitDelay != DefaultRateLimitDelay {
		t.Fatalf("Batch.RateLimitDelay: got %v want %v", cfg.Batch.RateLimitDelay, DefaultRateLimitDelay)
	}
	if cfg.Batch.RetryAttempts != DefaultRetryAttempts {
		t.Fatalf("Batch.RetryAttempts: got %d want %d", cfg.Batch.RetryAttempts, DefaultRetryAttempts)
	}
	if cfg.Sampling.TargetSize != DefaultSampleSize {
		t.Fatalf("Sampling.TargetSize: got %d want %d", cfg.Sampling.TargetSize, DefaultSampleSize)
	}
	if cfg.Sampling.MinResponses != DefaultMinResponses {
		t.Fatalf("Sampling.MinResponses: got %d want %d", cfg.Sampling.MinResponses, DefaultMinResponses)
	}
	if cfg.Catalog.Path != DefaultCatalogPath {
		t.Fatalf("Catalog.Path: got %q want %q", cfg.Catalog.Path, DefaultCatalogPath)
	}
}

func TestLoad_ParsesSections(t *testing.T) {
	path := writeConfigFile(t, `
llm:
  default_provider: claude
  providers:
    claude:
      api_key: sk-test
      model: claude-sonnet-4-5
batch:
  size: 5
  rate_limit_delay: 2s
  retry_attempts: 2
  retry_delay: 500ms
  temperature: 0.3
  max_tokens: 1024
  enable_search: true
sampling:
  target_size: 30
  min_responses: 10
storage:
  type: sqlite
  path: data/test.db
catalog:
  path: data/queries.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.DefaultProvider != "claude" {
		t.Fatalf("DefaultProvider: got %q", cfg.LLM.DefaultProvider)
	}
	if cfg.LLM.Providers["claude"].Model != "claude-sonnet-4-5" {
		t.Fatalf("claude model: got %q", cfg.LLM.Providers["claude"].Model)
	}
	if cfg.Batch.Size != 5 {
		t.Fatalf("Batch.Size: got %d", cfg.Batch.Size)
	}
	if cfg.Batch.RateLimitDelay != 2*time.Second {
		t.Fatalf("Batch.RateLimitDelay: got %v", cfg.Batch.RateLimitDelay)
	}
	if cfg.Batch.RetryDelay != 500*time.Millisecond {
		t.Fatalf("Batch.RetryDelay: got %v", cfg.Batch.RetryDelay)
	}
	if !cfg.Batch.EnableSearch {
		t.Fatalf("Batch.EnableSearch: got false")
	}
	if cfg.Sampling.TargetSize != 30 || cfg.Sampling.MinResponses != 10 {
		t.Fatalf("Sampling: got %+v", cfg.Sampling)
	}
	if cfg.Storage.Path != "data/test.db" {
		t.Fatalf("Storage.Path: got %q", cfg.Storage.Path)
	}
	if cfg.Catalog.Path != "data/queries.json" {
		t.Fatalf("Catalog.Path: got %q", cfg.Catalog.Path)
	}
}

func TestLoad_EnvOverridesAPIKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-env-claude")

	path := writeConfigFile(t, "llm:\n  providers:\n    openai:\n      api_key: sk-file\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Providers["openai"].APIKey != "sk-env-openai" {
		t.Fatalf("openai key: got %q", cfg.LLM.Providers["openai"].APIKey)
	}
	if cfg.LLM.Providers["claude"].APIKey != "sk-env-claude" {
		t.Fatalf("claude key: got %q", cfg.LLM.Providers["claude"].APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Batch.ErrorCap != DefaultErrorCap {
		t.Fatalf("ErrorCap: got %d want %d", cfg.Batch.ErrorCap, DefaultErrorCap)
	}
	if cfg.LLM.DefaultProvider != "openai" {
		t.Fatalf("DefaultProvider: got %q", cfg.LLM.DefaultProvider)
	}
}
