package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/backoff"
)

const testKeyEnv = "KOTAE_TEST_EMBED_KEY"

func fastPolicy() backoff.Policy {
	return backoff.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

// fakeEmbeddingServer returns one 4-dim vector per input; the first component
// encodes the input's position so order preservation is observable.
func fakeEmbeddingServer(t *testing.T, failures *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && atomic.AddInt32(failures, -1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, datum{
				Index:     i,
				Embedding: []float32{float32(i), float32(len(text)), 0, 1},
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbedder(t *testing.T, srv *httptest.Server, batchSize int) *RemoteEmbedder {
	t.Helper()
	t.Setenv(testKeyEnv, "test-key")
	e, err := NewRemoteEmbedder(RemoteConfig{
		BaseURL:    srv.URL,
		APIKeyEnv:  testKeyEnv,
		Model:      "test-model",
		Dimensions: 4,
		BatchSize:  batchSize,
		Policy:     fastPolicy(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewRemoteEmbedder_missingKeyFailsFast(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	_, err := NewRemoteEmbedder(RemoteConfig{APIKeyEnv: testKeyEnv, Dimensions: 4})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestEmbedBatch_orderPreservingAcrossSubBatches(t *testing.T) {
	srv := fakeEmbeddingServer(t, nil)
	defer srv.Close()
	e := newTestEmbedder(t, srv, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("len(vectors) = %d, want %d", len(vectors), len(texts))
	}
	// Second component is len(text); sub-batch splitting must not reorder.
	for i, text := range texts {
		if got := vectors[i][1]; got != float32(len(text)) {
			t.Errorf("vectors[%d][1] = %v, want %v", i, got, len(text))
		}
	}
}

func TestEmbedBatch_retriesTransient(t *testing.T) {
	failures := int32(2)
	srv := fakeEmbeddingServer(t, &failures)
	defer srv.Close()
	e := newTestEmbedder(t, srv, 8)

	if _, err := e.EmbedBatch(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("EmbedBatch after transient failures: %v", err)
	}
}

func TestEmbedBatch_permanentNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	e := newTestEmbedder(t, srv, 8)

	_, err := e.EmbedBatch(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !backoff.IsPermanent(err) {
		t.Errorf("401 should be permanent, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestEmbedBatch_dimensionMismatchPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"index": 0, "embedding": []float32{1, 2}}},
		})
	}))
	defer srv.Close()
	e := newTestEmbedder(t, srv, 8)

	_, err := e.EmbedBatch(context.Background(), []string{"hello"})
	if err == nil || !backoff.IsPermanent(err) {
		t.Errorf("dimension mismatch should be permanent, got %v", err)
	}
}

func TestMockEmbedder_deterministicAndNormalized(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a1, err := e.Embed(ctx, "the sky is blue")
	if err != nil {
		t.Fatal(err)
	}
	batch, err := e.EmbedBatch(ctx, []string{"the sky is blue", "grass is green"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a1 {
		if a1[i] != batch[0][i] {
			t.Fatal("same text should embed identically in single and batch calls")
		}
	}
	var norm float64
	for _, v := range a1 {
		norm += float64(v * v)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("norm = %v, want 1.0", norm)
	}
}

func TestCachedEmbedder_servesHitsWithoutRemoteCall(t *testing.T) {
	srv := fakeEmbeddingServer(t, nil)
	var calls int32
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		srv.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()
	defer counting.Close()

	e := NewCachedEmbedder(newTestEmbedder(t, counting, 8), 16)
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("remote calls = %d, want 1 (second batch fully cached)", n)
	}
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatal("cached vectors differ from original")
			}
		}
	}
}

func TestCachedEmbedder_evictsAtCapacity(t *testing.T) {
	srv := fakeEmbeddingServer(t, nil)
	defer srv.Close()
	inner := newTestEmbedder(t, srv, 8)
	e := NewCachedEmbedder(inner, 2).(*CachedEmbedder)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if _, err := e.Embed(ctx, text); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := e.cache.get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := e.cache.get("c"); !ok {
		t.Error("newest entry should be cached")
	}
}
