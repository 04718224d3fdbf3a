// Package vector provides vector index implementations and a factory for creating them.
package vector

import (
	"context"
	"fmt"
)

// Backend represents the vector index backend to use.
type Backend string

const (
	// BackendMemory uses in-memory brute-force search. Good for small datasets (<100k vectors).
	BackendMemory Backend = "memory"
	// BackendQdrant uses a Qdrant server over its REST API.
	BackendQdrant Backend = "qdrant"
	// BackendRedis uses Redis with the RediSearch vector module.
	BackendRedis Backend = "redis"
)

// Options carries backend-specific settings for NewVectorIndex. Only the
// section matching the chosen backend is read.
type Options struct {
	Qdrant QdrantConfig
	Redis  RedisConfig
}

// NewVectorIndex creates a vector index for the given backend.
// Supported backends: "memory" (default), "qdrant", "redis".
func NewVectorIndex(ctx context.Context, backend string, metric Metric, dimensions int, opts Options) (VectorIndex, error) {
	switch Backend(backend) {
	case BackendMemory, "":
		return NewMemoryIndex(metric, dimensions)
	case BackendQdrant:
		return NewQdrantIndex(ctx, metric, dimensions, opts.Qdrant)
	case BackendRedis:
		return NewRedisIndex(ctx, metric, dimensions, opts.Redis)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, qdrant, redis)", backend)
	}
}
