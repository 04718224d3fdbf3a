// Package storage defines the persistence interface for documents and chunks.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound reports that the requested document does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document and chunk persistence operations.
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Chunk operations. ReplaceChunks swaps a source's chunk set atomically,
	// so re-ingesting a document never leaves stale chunks behind.
	ReplaceChunks(ctx context.Context, sourceID string, chunks []*models.Chunk) error
	GetChunksBySource(ctx context.Context, sourceID string) ([]*models.Chunk, error)
	DeleteChunksBySource(ctx context.Context, sourceID string) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
