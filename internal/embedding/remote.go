package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hyperjump/kotae/internal/backoff"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "text-embedding-3-small"
	defaultBatchSize = 32
	defaultTimeout   = 30 * time.Second
)

// RemoteConfig configures the OpenAI-compatible embeddings client.
type RemoteConfig struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	Policy     backoff.Policy
}

// RemoteEmbedder calls an OpenAI-compatible /embeddings endpoint. Batches are
// order-preserving; batches larger than the configured batch size are split
// into sequential sub-calls and concatenated in the original order.
type RemoteEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	batchSize  int
	client     *http.Client
	policy     backoff.Policy
}

// NewRemoteEmbedder creates an embeddings client. The API key is read from the
// environment variable named in cfg; a missing key fails here rather than on
// first use.
func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("embedding: missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}
	return &RemoteEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		client:     &http.Client{Timeout: cfg.Timeout},
		policy:     cfg.Policy,
	}, nil
}

// Embed returns an embedding vector for a single text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		var batch [][]float32
		err := e.policy.Retry(ctx, func() error {
			var callErr error
			batch, callErr = e.embedOnce(ctx, texts[start:end])
			return callErr
		})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *RemoteEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model": e.model,
		"input": texts,
	})
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, backoff.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, backoff.ClassifyStatus(resp.StatusCode,
			fmt.Errorf("embedding request failed: %s: %s", resp.Status, bytes.TrimSpace(msg)))
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Transient(fmt.Errorf("decode embedding response: %w", err))
	}
	if len(out.Data) != len(texts) {
		return nil, backoff.Permanent(fmt.Errorf("embedding count mismatch: got %d, want %d", len(out.Data), len(texts)))
	}
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, backoff.Permanent(fmt.Errorf("embedding index out of range: %d", d.Index))
		}
		if len(d.Embedding) != e.dimensions {
			return nil, backoff.Permanent(fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(d.Embedding), e.dimensions))
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, backoff.Permanent(fmt.Errorf("no embedding returned for input %d", i))
		}
	}
	return vectors, nil
}

// Dimensions returns the configured embedding dimension.
func (e *RemoteEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op for RemoteEmbedder.
func (e *RemoteEmbedder) Close() error { return nil }
