package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/documents.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kotae/data/indices/vectors.bin"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "remote"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 8000
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-1.5-flash"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Generation.MaxOutputTokens == 0 {
		cfg.Generation.MaxOutputTokens = 1024
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 60
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "cosine"
	}
	if cfg.Vector.Qdrant.Collection == "" {
		cfg.Vector.Qdrant.Collection = "kotae-chunks"
	}
	if cfg.Vector.Qdrant.APIKeyEnv == "" {
		cfg.Vector.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
	}
	if cfg.Vector.Redis.Addr == "" {
		cfg.Vector.Redis.Addr = "localhost:6379"
	}
	if cfg.Vector.Redis.IndexName == "" {
		cfg.Vector.Redis.IndexName = "kotae-chunks"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".csv", ".pdf", ".docx", ".xlsx", ".db"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
