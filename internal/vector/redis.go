package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/kotae/internal/backoff"
)

const (
	redisFieldContent  = "content"
	redisFieldVector   = "vector"
	redisFieldSource   = "source_id"
	redisFieldSequence = "sequence_index"
	redisFieldScore    = "score"
)

// redisDistance maps a Metric to RediSearch's DISTANCE_METRIC name.
var redisDistance = map[Metric]string{
	MetricCosine:    "COSINE",
	MetricDot:       "IP",
	MetricEuclidean: "L2",
}

// RedisConfig configures a Redis-backed index.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	IndexName string
	KeyPrefix string
	Policy    backoff.Policy
}

// RedisIndex stores entries as Redis hashes under a key prefix and searches
// them through a RediSearch HNSW index. Vectors are stored as little-endian
// float32 blobs, the layout FT.SEARCH expects for the KNN query parameter.
type RedisIndex struct {
	client     *redis.Client
	indexName  string
	keyPrefix  string
	metric     Metric
	dimensions int
	policy     backoff.Policy
}

// NewRedisIndex connects to Redis and ensures the search index exists.
func NewRedisIndex(ctx context.Context, metric Metric, dimensions int, cfg RedisConfig) (*RedisIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "kotae-chunks"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "kotae:chunk:"
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	idx := &RedisIndex{
		client:     client,
		indexName:  cfg.IndexName,
		keyPrefix:  cfg.KeyPrefix,
		metric:     m,
		dimensions: dimensions,
		policy:     cfg.Policy,
	}
	if err := idx.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

// Type returns the index backend identifier.
func (r *RedisIndex) Type() string {
	return string(BackendRedis)
}

func (r *RedisIndex) ensureIndex(ctx context.Context) error {
	if _, err := r.client.Do(ctx, "FT.INFO", r.indexName).Result(); err == nil {
		return nil
	}
	_, err := r.client.Do(ctx, "FT.CREATE", r.indexName,
		"ON", "HASH",
		"PREFIX", "1", r.keyPrefix,
		"SCHEMA",
		redisFieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(r.dimensions),
		"DISTANCE_METRIC", redisDistance[r.metric],
		redisFieldContent, "TEXT",
		redisFieldSource, "TAG",
		redisFieldSequence, "NUMERIC",
	).Result()
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	return nil
}

// vectorBlob encodes a vector as little-endian float32 bytes.
func vectorBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert writes entries through a pipeline. HSET overwrites whole keys, so
// re-ingesting a chunk ID replaces its previous content and vector.
func (r *RedisIndex) Upsert(ctx context.Context, entries []IndexEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	for _, e := range entries {
		if len(e.Vector) != r.dimensions {
			return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(e.Vector), r.dimensions)
		}
	}
	err := r.policy.Retry(ctx, func() error {
		pipe := r.client.Pipeline()
		for _, e := range entries {
			pipe.HSet(ctx, r.keyPrefix+e.ID,
				redisFieldContent, e.Metadata.Content,
				redisFieldVector, vectorBlob(e.Vector),
				redisFieldSource, escapeTag(e.Metadata.SourceID),
				redisFieldSequence, e.Metadata.SequenceIndex,
			)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return backoff.Transient(fmt.Errorf("%w: %v", ErrIndexUnavailable, err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Query runs a KNN search and converts RediSearch distances into
// higher-is-better scores consistent with the in-memory backend.
func (r *RedisIndex) Query(ctx context.Context, query []float32, topK int) ([]*Match, error) {
	if len(query) != r.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), r.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}

	knn := fmt.Sprintf("*=>[KNN %d @%s $query_vector AS %s]", topK, redisFieldVector, redisFieldScore)
	var raw any
	err := r.policy.Retry(ctx, func() error {
		res, err := r.client.Do(ctx, "FT.SEARCH", r.indexName, knn,
			"PARAMS", "2", "query_vector", vectorBlob(query),
			"RETURN", "4", redisFieldContent, redisFieldSource, redisFieldSequence, redisFieldScore,
			"SORTBY", redisFieldScore,
			"LIMIT", "0", strconv.Itoa(topK),
			"DIALECT", "2",
		).Result()
		if err != nil {
			return backoff.Transient(fmt.Errorf("%w: %v", ErrIndexUnavailable, err))
		}
		raw = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.parseMatches(raw)
}

// parseMatches walks the FT.SEARCH array reply: count, then (key, fields)
// pairs, where fields itself alternates name and value.
func (r *RedisIndex) parseMatches(raw any) ([]*Match, error) {
	values, ok := raw.([]any)
	if !ok {
		if mp, ok := raw.(map[any]any); ok {
			return r.parseMatchesRESP3(mp)
		}
		return nil, fmt.Errorf("unexpected search reply type %T", raw)
	}
	if len(values) < 1 {
		return nil, nil
	}
	var matches []*Match
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		fields, ok := values[i+1].([]any)
		if !ok {
			continue
		}
		m := &Match{ID: strings.TrimPrefix(key, r.keyPrefix)}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			val, _ := fields[j+1].(string)
			r.setMatchField(m, name, val)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// parseMatchesRESP3 handles the map-shaped reply newer client protocols use.
func (r *RedisIndex) parseMatchesRESP3(mp map[any]any) ([]*Match, error) {
	results, ok := mp["results"].([]any)
	if !ok {
		return nil, nil
	}
	var matches []*Match
	for _, item := range results {
		doc, ok := item.(map[any]any)
		if !ok {
			continue
		}
		key, _ := doc["id"].(string)
		m := &Match{ID: strings.TrimPrefix(key, r.keyPrefix)}
		if attrs, ok := doc["extra_attributes"].(map[any]any); ok {
			for k, v := range attrs {
				name, _ := k.(string)
				val, _ := v.(string)
				r.setMatchField(m, name, val)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (r *RedisIndex) setMatchField(m *Match, name, val string) {
	switch name {
	case redisFieldContent:
		m.Metadata.Content = val
	case redisFieldSource:
		m.Metadata.SourceID = unescapeTag(val)
	case redisFieldSequence:
		if n, err := strconv.Atoi(val); err == nil {
			m.Metadata.SequenceIndex = n
		}
	case redisFieldScore:
		if d, err := strconv.ParseFloat(val, 64); err == nil {
			m.Score = r.distanceToScore(d)
		}
	}
}

// distanceToScore converts a RediSearch distance into the same
// higher-is-better scale MemoryIndex produces for the metric.
func (r *RedisIndex) distanceToScore(d float64) float64 {
	switch r.metric {
	case MetricEuclidean:
		// RediSearch L2 reports squared distance.
		return 1.0 / (1.0 + math.Sqrt(d))
	default:
		// COSINE and IP report 1 - similarity.
		return 1.0 - d
	}
}

// Remove deletes a single entry by ID.
func (r *RedisIndex) Remove(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// RemoveBySource deletes every entry tagged with the given source.
func (r *RedisIndex) RemoveBySource(ctx context.Context, sourceID string) error {
	raw, err := r.client.Do(ctx, "FT.SEARCH", r.indexName,
		fmt.Sprintf("@%s:{%s}", redisFieldSource, escapeTag(sourceID)),
		"NOCONTENT",
		"LIMIT", "0", "10000",
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	values, ok := raw.([]any)
	if !ok || len(values) < 2 {
		return nil
	}
	var keys []string
	for i := 1; i < len(values); i++ {
		if key, ok := values[i].(string); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Stats reads the entry count from FT.INFO.
func (r *RedisIndex) Stats(ctx context.Context) (*Stats, error) {
	raw, err := r.client.Do(ctx, "FT.INFO", r.indexName).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	values, ok := raw.([]any)
	if !ok {
		return &Stats{}, nil
	}
	st := &Stats{}
	for i := 0; i+1 < len(values); i += 2 {
		if key, ok := values[i].(string); ok && key == "num_docs" {
			switch v := values[i+1].(type) {
			case int64:
				st.EntryCount = v
			case string:
				if n, err := strconv.ParseInt(v, 10, 64); err == nil {
					st.EntryCount = n
				}
			}
		}
	}
	return st, nil
}

// Save is a no-op; Redis persists server-side.
func (r *RedisIndex) Save(path string) error { return nil }

// Load is a no-op; Redis persists server-side.
func (r *RedisIndex) Load(path string) error { return nil }

// Close releases the Redis connection.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}

// escapeTag escapes the separator characters RediSearch TAG fields treat
// specially.
func escapeTag(s string) string {
	replacer := strings.NewReplacer(",", "\\,", " ", "\\ ", "{", "\\{", "}", "\\}")
	return replacer.Replace(s)
}

func unescapeTag(s string) string {
	replacer := strings.NewReplacer("\\,", ",", "\\ ", " ", "\\{", "{", "\\}", "}")
	return replacer.Replace(s)
}
