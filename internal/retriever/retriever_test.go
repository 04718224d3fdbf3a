package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/vector"
)

const testDims = 64

func seedIndex(t *testing.T, emb embedding.Embedder, texts map[string]string) vector.VectorIndex {
	t.Helper()
	idx, err := vector.NewMemoryIndex(vector.MetricCosine, testDims)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	ctx := context.Background()
	seq := 0
	for id, text := range texts {
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := idx.Upsert(ctx, []vector.IndexEntry{{
			ID:     id,
			Vector: vec,
			Metadata: vector.EntryMetadata{
				Content:       text,
				SourceID:      "facts.txt",
				SequenceIndex: seq,
			},
		}}); err != nil {
			t.Fatal(err)
		}
		seq++
	}
	return idx
}

func TestRetrieverValidation(t *testing.T) {
	emb := embedding.NewMockEmbedder(testDims)
	idx, _ := vector.NewMemoryIndex(vector.MetricCosine, testDims)
	defer idx.Close()

	if _, err := NewRetriever(emb, idx, 0); err == nil {
		t.Error("expected error for topK=0")
	}

	r, err := NewRetriever(emb, idx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Retrieve(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	emb := embedding.NewMockEmbedder(testDims)
	idx := seedIndex(t, emb, map[string]string{
		"facts.txt_0": "The sky is blue on a clear day",
		"facts.txt_1": "Grass is green in spring",
		"facts.txt_2": "Bananas are yellow fruit",
	})

	r, err := NewRetriever(emb, idx, 2)
	if err != nil {
		t.Fatal(err)
	}

	result, err := r.Retrieve(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatal(err)
	}
	if result.Empty() {
		t.Fatal("expected chunks")
	}
	if len(result.Chunks) > 2 {
		t.Errorf("topK not honored: got %d chunks", len(result.Chunks))
	}
	if result.Chunks[0].Chunk.ID != "facts.txt_0" {
		t.Errorf("best chunk = %s, want facts.txt_0", result.Chunks[0].Chunk.ID)
	}
	for i := 1; i < len(result.Chunks); i++ {
		if result.Chunks[i].Score > result.Chunks[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
	if result.Query != "What color is the sky?" {
		t.Errorf("query echoed = %q", result.Query)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	emb := embedding.NewMockEmbedder(testDims)
	idx, err := vector.NewMemoryIndex(vector.MetricCosine, testDims)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	r, err := NewRetriever(emb, idx, 5)
	if err != nil {
		t.Fatal(err)
	}

	result, err := r.Retrieve(context.Background(), "anything at all")
	if err != nil {
		t.Fatalf("empty index should not error: %v", err)
	}
	if !result.Empty() {
		t.Errorf("expected empty result, got %d chunks", len(result.Chunks))
	}
}

func TestRetrieveCarriesChunkMetadata(t *testing.T) {
	emb := embedding.NewMockEmbedder(testDims)
	idx := seedIndex(t, emb, map[string]string{
		"facts.txt_0": "Oceans cover most of the planet",
	})

	r, err := NewRetriever(emb, idx, 5)
	if err != nil {
		t.Fatal(err)
	}
	result, err := r.Retrieve(context.Background(), "How much of the planet is ocean?")
	if err != nil {
		t.Fatal(err)
	}
	if result.Empty() {
		t.Fatal("expected a chunk")
	}
	c := result.Chunks[0].Chunk
	if c.SourceID != "facts.txt" {
		t.Errorf("SourceID = %q", c.SourceID)
	}
	if c.Content == "" {
		t.Error("content should be populated from index metadata")
	}
}
