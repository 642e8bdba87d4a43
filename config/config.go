// Package config holds the booksearch configuration. Settings come from an
// optional YAML file with environment variables overriding credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Paths locates the book library and the system's own data files. The data
// directory is always excluded from library scans.
type Paths struct {
	BooksRoot  string `yaml:"books_root"`
	DataDir    string `yaml:"data_dir"`
	LedgerFile string `yaml:"ledger_file"`
}

// Chunking controls the two chunk granularities. Bounds are estimated token
// counts, not exact tokenizer output.
type Chunking struct {
	ChapterMinTokens   int `yaml:"chapter_min_tokens"`
	ChapterMaxTokens   int `yaml:"chapter_max_tokens"`
	ParagraphMinTokens int `yaml:"paragraph_min_tokens"`
	ParagraphMaxTokens int `yaml:"paragraph_max_tokens"`
	OverlapTokens      int `yaml:"overlap_tokens"`
}

// OpenAI configures the embedding provider.
type OpenAI struct {
	APIKey     string `yaml:"-"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	MaxRetries int    `yaml:"max_retries"`
}

// Store configures the vector store backend.
type Store struct {
	Backend        string `yaml:"backend"`
	PostgresDSN    string `yaml:"-"`
	Collection     string `yaml:"collection"`
	DistanceMetric string `yaml:"distance_metric"`
}

// Search bounds result counts.
type Search struct {
	DefaultResults int `yaml:"default_results"`
	MaxResults     int `yaml:"max_results"`
}

type Config struct {
	Paths    Paths    `yaml:"paths"`
	Chunking Chunking `yaml:"chunking"`
	OpenAI   OpenAI   `yaml:"openai"`
	Store    Store    `yaml:"store"`
	Search   Search   `yaml:"search"`
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist. An empty path uses ./booksearch.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "booksearch.yaml"
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.Store.PostgresDSN = getEnv("POSTGRES_DSN", cfg.Store.PostgresDSN)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: Paths{
			BooksRoot: ".",
			DataDir:   "data",
		},
		Chunking: Chunking{
			ChapterMinTokens:   2000,
			ChapterMaxTokens:   5000,
			ParagraphMinTokens: 300,
			ParagraphMaxTokens: 500,
			OverlapTokens:      50,
		},
		OpenAI: OpenAI{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			MaxRetries: 3,
		},
		Store: Store{
			Backend:        "postgres",
			PostgresDSN:    "postgres://localhost:5432/booksearch?sslmode=disable",
			Collection:     "book_chunks",
			DistanceMetric: "cosine",
		},
		Search: Search{
			DefaultResults: 10,
			MaxResults:     50,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Paths.BooksRoot == "" {
		cfg.Paths.BooksRoot = def.Paths.BooksRoot
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = def.Paths.DataDir
	}
	if cfg.Paths.LedgerFile == "" {
		cfg.Paths.LedgerFile = filepath.Join(cfg.Paths.DataDir, "index_status.json")
	}
	if cfg.Chunking.ChapterMinTokens == 0 {
		cfg.Chunking.ChapterMinTokens = def.Chunking.ChapterMinTokens
	}
	if cfg.Chunking.ChapterMaxTokens == 0 {
		cfg.Chunking.ChapterMaxTokens = def.Chunking.ChapterMaxTokens
	}
	if cfg.Chunking.ParagraphMinTokens == 0 {
		cfg.Chunking.ParagraphMinTokens = def.Chunking.ParagraphMinTokens
	}
	if cfg.Chunking.ParagraphMaxTokens == 0 {
		cfg.Chunking.ParagraphMaxTokens = def.Chunking.ParagraphMaxTokens
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = def.OpenAI.Model
	}
	if cfg.OpenAI.Dimensions == 0 {
		cfg.OpenAI.Dimensions = def.OpenAI.Dimensions
	}
	if cfg.OpenAI.MaxRetries == 0 {
		cfg.OpenAI.MaxRetries = def.OpenAI.MaxRetries
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}
	if cfg.Store.PostgresDSN == "" {
		cfg.Store.PostgresDSN = def.Store.PostgresDSN
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = def.Store.Collection
	}
	if cfg.Store.DistanceMetric == "" {
		cfg.Store.DistanceMetric = def.Store.DistanceMetric
	}
	if cfg.Search.DefaultResults == 0 {
		cfg.Search.DefaultResults = def.Search.DefaultResults
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = def.Search.MaxResults
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
