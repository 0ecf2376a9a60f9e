package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Tickers.Defaults) != 20 {
		t.Errorf("expected 20 default tickers, got %d", len(cfg.Tickers.Defaults))
	}

	if len(cfg.Sources.News.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}

	if cfg.Summarizer.Provider != "gemini" {
		t.Errorf("expected provider 'gemini', got %q", cfg.Summarizer.Provider)
	}

	if cfg.Summarizer.Model != "gemini-1.5-flash" {
		t.Errorf("expected model 'gemini-1.5-flash', got %q", cfg.Summarizer.Model)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
summarizer:
  provider: openai
  model: gpt-4o
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Summarizer.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Summarizer.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Summarizer.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Summarizer.OllamaURL)
	}
	if len(cfg.Sources.Forum.Subreddits) != 3 {
		t.Errorf("expected default subreddits, got %v", cfg.Sources.Forum.Subreddits)
	}
	if cfg.Pipeline.ItemsPerSource != 10 {
		t.Errorf("expected default items_per_source 10, got %d", cfg.Pipeline.ItemsPerSource)
	}
}

func TestParseDisablesSource(t *testing.T) {
	data := []byte(`
sources:
  forum:
    enabled: false
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	if cfg.Sources.Forum.Enabled {
		t.Error("expected forum source disabled")
	}
	if !cfg.Sources.News.NewsAPI.Enabled {
		t.Error("expected newsapi to stay enabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.News.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
