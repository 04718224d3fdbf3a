// Package retriever turns a question into a ranked set of relevant chunks.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// ErrEmptyQuery reports a blank or whitespace-only question.
var ErrEmptyQuery = errors.New("query is empty")

// Retriever embeds a question and searches the vector index for the chunks
// most similar to it.
type Retriever struct {
	embedder embedding.Embedder
	index    vector.VectorIndex
	topK     int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a retriever returning at most topK chunks per query.
func NewRetriever(embedder embedding.Embedder, index vector.VectorIndex, topK int, opts ...Option) (*Retriever, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	r := &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Retrieve returns the chunks most similar to the question, best first.
// An empty index yields an empty result, not an error; the question is not
// even embedded in that case.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*models.RetrievalResult, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuery
	}

	result := &models.RetrievalResult{Query: question}

	stats, err := r.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	if stats.EntryCount == 0 {
		r.logger.Debug("retrieval against empty index", zap.String("query", question))
		result.QueryTime = time.Since(start).Milliseconds()
		return result, nil
	}

	queryVector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, queryVector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	result.Chunks = make([]*models.RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		result.Chunks = append(result.Chunks, &models.RetrievedChunk{
			Chunk: &models.Chunk{
				ID:            m.ID,
				SourceID:      m.Metadata.SourceID,
				Content:       m.Metadata.Content,
				SequenceIndex: m.Metadata.SequenceIndex,
			},
			Score: m.Score,
		})
	}
	result.QueryTime = time.Since(start).Milliseconds()

	r.logger.Debug("retrieval complete",
		zap.String("query", question),
		zap.Int("chunks", len(result.Chunks)),
		zap.Int64("query_time_ms", result.QueryTime))

	return result, nil
}

// TopK returns the configured result limit.
func (r *Retriever) TopK() int {
	return r.topK
}
