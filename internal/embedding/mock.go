package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hyperjump/kotae/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It hashes each token
// into a fixed-dimension bag-of-words vector and normalizes to unit length, so
// the same text always gets the same embedding and texts sharing words score
// higher under cosine similarity.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic token-hash embedding for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		emb[int(h.Sum32())%e.dimensions]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
