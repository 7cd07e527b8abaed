// Package config provides configuration loading and structs for the semdex server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the record database and index files.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	VectorIndexPath  string `yaml:"vector_index_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig holds settings for the external embedding provider.
type EmbeddingConfig struct {
	ProviderURL string `yaml:"provider_url"`
	// APIKey may be left empty; SEMDEX_EMBEDDING_API_KEY is used as fallback.
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// TimeoutSeconds bounds each provider call; a timeout surfaces as an
	// embedding-unavailable error, never as an empty result set.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxChars truncates input text before the provider call.
	MaxChars  int `yaml:"max_chars"`
	CacheSize int `yaml:"cache_size"`
}

// Timeout returns the provider call timeout as a duration.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	// OverfetchFactor multiplies the requested result count when querying
	// the index, leaving headroom for post-filtering losses.
	OverfetchFactor int     `yaml:"overfetch_factor"`
	MinScore        float64 `yaml:"min_score"`
	// TextPreviewChars bounds the text returned per hit; 0 returns full text.
	TextPreviewChars int `yaml:"text_preview_chars"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Name string `yaml:"name"`
	// BatchWindowSeconds collects pending removals and applies them with a
	// single rebuild per window. 0 rebuilds immediately on every removal.
	BatchWindowSeconds int `yaml:"batch_window_seconds"`
}

// BatchWindow returns the removal batch window as a duration.
func (i *IndexConfig) BatchWindow() time.Duration {
	return time.Duration(i.BatchWindowSeconds) * time.Second
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("SEMDEX_EMBEDDING_API_KEY")
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
