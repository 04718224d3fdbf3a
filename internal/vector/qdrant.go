package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/backoff"
)

// qdrantDistance maps a Metric to Qdrant's distance name.
var qdrantDistance = map[Metric]string{
	MetricCosine:    "Cosine",
	MetricDot:       "Dot",
	MetricEuclidean: "Euclid",
}

// QdrantConfig configures a Qdrant-backed index.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	AutoCreate bool
	Timeout    time.Duration
	Policy     backoff.Policy
}

// QdrantIndex is a REST client to a Qdrant collection. The collection is
// created on first use when AutoCreate is set; otherwise a missing collection
// surfaces as ErrNotFound. Chunk IDs are mapped to deterministic UUIDs since
// Qdrant point IDs must be UUIDs; the original ID travels in the payload.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	metric     Metric
	dimensions int
	autoCreate bool
	client     *http.Client
	policy     backoff.Policy
}

// NewQdrantIndex creates a Qdrant index client and ensures the collection
// exists (creating it under AutoCreate policy).
func NewQdrantIndex(ctx context.Context, metric Metric, dimensions int, cfg QdrantConfig) (*QdrantIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	if cfg.Collection == "" {
		cfg.Collection = "kotae-chunks"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}
	idx := &QdrantIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		metric:     m,
		dimensions: dimensions,
		autoCreate: cfg.AutoCreate,
		client:     &http.Client{Timeout: cfg.Timeout},
		policy:     cfg.Policy,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Type returns the index backend identifier.
func (q *QdrantIndex) Type() string {
	return string(BackendQdrant)
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if !q.autoCreate {
		return fmt.Errorf("%w: collection %s", ErrNotFound, q.collection)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimensions,
			"distance": qdrantDistance[q.metric],
		},
	}
	return q.policy.Retry(ctx, func() error {
		return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
	})
}

func (q *QdrantIndex) collectionExists(ctx context.Context) (bool, error) {
	var exists bool
	err := q.policy.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url+fmt.Sprintf("/collections/%s", q.collection), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		q.setHeaders(req)
		resp, err := q.client.Do(req)
		if err != nil {
			return backoff.Transient(fmt.Errorf("%w: %v", ErrIndexUnavailable, err))
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusOK:
			exists = true
			return nil
		case resp.StatusCode == http.StatusNotFound:
			exists = false
			return nil
		default:
			return backoff.ClassifyStatus(resp.StatusCode, fmt.Errorf("qdrant collection check failed: %s", resp.Status))
		}
	})
	return exists, err
}

// pointID converts a chunk ID into a deterministic Qdrant-legal UUID.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert writes entries in a single wait=true call, so the batch is atomic
// from the caller's point of view: count is len(entries) or zero.
func (q *QdrantIndex) Upsert(ctx context.Context, entries []IndexEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		if len(e.Vector) != q.dimensions {
			return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(e.Vector), q.dimensions)
		}
		points[i] = map[string]any{
			"id":     pointID(e.ID),
			"vector": e.Vector,
			"payload": map[string]any{
				"chunk_id":       e.ID,
				"content":        e.Metadata.Content,
				"source_id":      e.Metadata.SourceID,
				"sequence_index": e.Metadata.SequenceIndex,
			},
		}
	}
	err := q.policy.Retry(ctx, func() error {
		return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collection),
			map[string]any{"points": points}, nil)
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Query runs a similarity search and returns payload metadata verbatim.
func (q *QdrantIndex) Query(ctx context.Context, query []float32, topK int) ([]*Match, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), q.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}
	var out struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := q.policy.Retry(ctx, func() error {
		return q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collection),
			map[string]any{"vector": query, "limit": topK, "with_payload": true}, &out)
	})
	if err != nil {
		return nil, err
	}
	matches := make([]*Match, 0, len(out.Result))
	for _, r := range out.Result {
		m := &Match{Score: r.Score}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			m.ID = v
		}
		if v, ok := r.Payload["content"].(string); ok {
			m.Metadata.Content = v
		}
		if v, ok := r.Payload["source_id"].(string); ok {
			m.Metadata.SourceID = v
		}
		if v, ok := r.Payload["sequence_index"].(float64); ok {
			m.Metadata.SequenceIndex = int(v)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// RemoveBySource deletes all points whose payload names the given source.
func (q *QdrantIndex) RemoveBySource(ctx context.Context, sourceID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_id", "match": map[string]any{"value": sourceID}},
			},
		},
	}
	return q.policy.Retry(ctx, func() error {
		return q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection), body, nil)
	})
}

// Stats returns the collection's point count.
func (q *QdrantIndex) Stats(ctx context.Context) (*Stats, error) {
	var out struct {
		Result struct {
			PointsCount int64 `json:"points_count"`
		} `json:"result"`
	}
	err := q.policy.Retry(ctx, func() error {
		return q.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collection), nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return &Stats{EntryCount: out.Result.PointsCount}, nil
}

// Save is a no-op; Qdrant persists server-side.
func (q *QdrantIndex) Save(path string) error { return nil }

// Load is a no-op; Qdrant persists server-side.
func (q *QdrantIndex) Load(path string) error { return nil }

// Close is a no-op for QdrantIndex.
func (q *QdrantIndex) Close() error { return nil }

func (q *QdrantIndex) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}

// do issues one request, classifying failures: connection errors are
// transient ErrIndexUnavailable, 404 is ErrNotFound, 429/5xx transient,
// other statuses permanent.
func (q *QdrantIndex) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return backoff.Permanent(err)
	}
	q.setHeaders(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return backoff.Transient(fmt.Errorf("%w: %v", ErrIndexUnavailable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return backoff.Permanent(fmt.Errorf("%w: %s %s", ErrNotFound, method, path))
	}
	if resp.StatusCode >= 300 {
		return backoff.ClassifyStatus(resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, path, resp.Status))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
