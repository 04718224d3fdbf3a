// Package vector provides vector index backends and similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch reports a vector whose dimensionality does not match
// the index. The dimensionality is fixed at index creation.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrIndexUnavailable reports a connectivity failure to the backing index.
// Calls are retried a bounded number of times before this surfaces.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// ErrNotFound reports that the backing index or collection does not exist and
// cannot be auto-created under policy.
var ErrNotFound = errors.New("vector index not found")

// EntryMetadata is the chunk metadata stored alongside each vector and
// returned verbatim on query.
type EntryMetadata struct {
	Content       string `json:"content"`
	SourceID      string `json:"source_id"`
	SequenceIndex int    `json:"sequence_index"`
}

// IndexEntry is the persisted unit: vector plus chunk metadata, keyed by a
// stable chunk ID. Entries are never mutated in place; upserting the same ID
// replaces the prior content.
type IndexEntry struct {
	ID       string
	Vector   []float32
	Metadata EntryMetadata
}

// Match is a single query hit.
type Match struct {
	ID       string
	Score    float64
	Metadata EntryMetadata
}

// Stats describes the index contents.
type Stats struct {
	EntryCount int64
}

// VectorIndex defines vector storage and similarity search. The similarity
// metric and dimensionality are fixed at creation.
type VectorIndex interface {
	// Upsert writes entries, replacing any prior entry with the same ID.
	// Returns the number of entries written; on mid-batch failure the count
	// reports the prefix that succeeded.
	Upsert(ctx context.Context, entries []IndexEntry) (int, error)
	// Query returns at most topK entries ranked best-first under the index
	// metric. Ties are broken by insertion order, earlier first.
	Query(ctx context.Context, query []float32, topK int) ([]*Match, error)
	// RemoveBySource deletes every entry ingested from the given source.
	// Removing an unknown source is not an error.
	RemoveBySource(ctx context.Context, sourceID string) error
	Stats(ctx context.Context) (*Stats, error)
	Save(path string) error
	Load(path string) error
	Close() error
}
