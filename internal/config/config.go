// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Vector     VectorConfig     `yaml:"vector"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the persisted vector index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// ChunkingConfig holds the sliding-window chunker settings.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding settings. Provider selects between the
// remote service and deterministic local embeddings ("remote" or "mock");
// the API key is read from the environment variable named by APIKeyEnv,
// never from the file.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	CacheSize      int    `yaml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RetrievalConfig holds retrieval and context budgeting settings.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// VectorConfig selects the vector index backend and its settings.
type VectorConfig struct {
	Backend string       `yaml:"backend"`
	Metric  string       `yaml:"metric"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
	Redis   RedisConfig  `yaml:"redis"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	IndexName string `yaml:"index_name"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and validates the result.
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
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations that cannot operate.
func Validate(cfg *Config) error {
	if cfg.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap <= 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in (0, size), got %d with size %d", cfg.Chunking.Overlap, cfg.Chunking.Size)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	switch cfg.Embedding.Provider {
	case "remote", "mock":
	default:
		return fmt.Errorf("embedding.provider must be remote or mock, got %q", cfg.Embedding.Provider)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MaxContextChars <= 0 {
		return fmt.Errorf("retrieval.max_context_chars must be positive, got %d", cfg.Retrieval.MaxContextChars)
	}
	switch cfg.Vector.Backend {
	case "memory", "qdrant", "redis":
	default:
		return fmt.Errorf("vector.backend must be one of memory, qdrant, redis; got %q", cfg.Vector.Backend)
	}
	switch cfg.Vector.Metric {
	case "cosine", "dot", "euclidean":
	default:
		return fmt.Errorf("vector.metric must be one of cosine, dot, euclidean; got %q", cfg.Vector.Metric)
	}
	return nil
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
