// Package chunker splits document text into overlapping fixed-size chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrEmptyInput is returned when the input text is empty or whitespace-only.
// Callers report it rather than silently indexing nothing.
var ErrEmptyInput = errors.New("no text to chunk")

// ConfigError reports invalid chunking parameters. It is fatal at startup.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "chunker config: " + e.Msg }

// Chunker slides a fixed-size window over text, advancing by size-overlap
// runes per step. Deterministic and side-effect free.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
// Requires 0 < overlap < size.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, &ConfigError{Msg: fmt.Sprintf("chunk size must be positive, got %d", chunkSize)}
	}
	if chunkOverlap <= 0 || chunkOverlap >= chunkSize {
		return nil, &ConfigError{Msg: fmt.Sprintf("overlap must be in (0, %d), got %d", chunkSize, chunkOverlap)}
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into chunks for sourceID. Consecutive chunks overlap by
// exactly the configured overlap; the final chunk may be shorter than the
// chunk size, never padded. Text no longer than one window yields one chunk.
// Returns ErrEmptyInput for empty or whitespace-only text.
func (c *Chunker) Chunk(sourceID, text string) ([]*models.Chunk, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}
	runes := []rune(trimmed)
	step := c.chunkSize - c.chunkOverlap
	var chunks []*models.Chunk
	for start, seq := 0, 0; start < len(runes); start, seq = start+step, seq+1 {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, &models.Chunk{
			ID:            fmt.Sprintf("%s_%d", sourceID, seq),
			SourceID:      sourceID,
			Content:       string(runes[start:end]),
			SequenceIndex: seq,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// ChunkSize returns the configured window size in runes.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap returns the configured overlap in runes.
func (c *Chunker) ChunkOverlap() int { return c.chunkOverlap }
