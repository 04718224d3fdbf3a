// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// Document represents an ingested source document with metadata.
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Title     string                 `json:"title" db:"title"`
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Chunk is a contiguous span of document text, the unit of retrieval.
// Chunks are created at ingestion time and immutable afterwards; re-ingesting
// the same source replaces them.
type Chunk struct {
	ID            string    `json:"id" db:"id"`
	SourceID      string    `json:"source_id" db:"source_id"`
	Content       string    `json:"content" db:"content"`
	SequenceIndex int       `json:"sequence_index" db:"sequence_index"`
	Embedding     []float32 `json:"-" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
