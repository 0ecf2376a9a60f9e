package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// defaultTickers seeds the tracked set on first init.
var defaultTickers = []string{
	"TSLA", "NVDA", "CRCL", "AAPL", "AMZN", "MSFT", "META", "PLTR", "AVGO", "AMD",
	"COIN", "GOOG", "NFLX", "V", "CRWD", "UNH", "MSTR", "LLY", "MA", "ORCL",
}

type Config struct {
	Tickers    Tickers    `yaml:"tickers"`
	Sources    Sources    `yaml:"sources"`
	Summarizer Summarizer `yaml:"summarizer"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Tickers struct {
	Defaults []string `yaml:"defaults"`
}

type Sources struct {
	Forum ForumConfig `yaml:"forum"`
	News  NewsConfig  `yaml:"news"`
}

type ForumConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Subreddits        []string `yaml:"subreddits"`
	PostsPerSubreddit int      `yaml:"posts_per_subreddit"`
}

type NewsConfig struct {
	NewsAPI       NewsAPIConfig `yaml:"newsapi"`
	Feeds         []Feed        `yaml:"feeds"`
	DaysBack      int           `yaml:"days_back"`
	EnrichContent bool          `yaml:"enrich_content"`
	MinBodyChars  int           `yaml:"min_body_chars"`
}

type NewsAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	PageSize  int    `yaml:"page_size"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Summarizer struct {
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	APIKeyEnv         string `yaml:"api_key_env"`
	OllamaURL         string `yaml:"ollama_url"`
	OllamaModel       string `yaml:"ollama_model"`
	MaxTokens         int    `yaml:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type Pipeline struct {
	ItemsPerSource       int `yaml:"items_per_source"`
	MaxConcurrentTickers int `yaml:"max_concurrent_tickers"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for tickerpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "tickerpulse")
}

// DataDir returns the XDG data directory for tickerpulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "tickerpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/tickerpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'tickerpulse init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Tickers: Tickers{Defaults: defaultTickers},
		Sources: Sources{
			Forum: ForumConfig{
				Enabled:           true,
				Subreddits:        []string{"stocks", "wallstreetbets", "investing"},
				PostsPerSubreddit: 3,
			},
			News: NewsConfig{
				NewsAPI: NewsAPIConfig{
					Enabled:   true,
					APIKeyEnv: "NEWSAPI_API_KEY",
					PageSize:  20,
				},
				DaysBack:      7,
				EnrichContent: true,
				MinBodyChars:  200,
			},
		},
		Summarizer: Summarizer{
			Provider:          "gemini",
			Model:             "gemini-1.5-flash",
			APIKeyEnv:         "GEMINI_API_KEY",
			OllamaURL:         "http://localhost:11434",
			OllamaModel:       "qwen2.5:7b",
			MaxTokens:         512,
			RequestsPerMinute: 15,
		},
		Pipeline: Pipeline{
			ItemsPerSource:       10,
			MaxConcurrentTickers: 1,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
