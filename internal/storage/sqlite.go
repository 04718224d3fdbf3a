// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		content TEXT NOT NULL,
		sequence_index INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_id ON chunks(source_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_source_sequence ON chunks(source_id, sequence_index);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertDocument inserts a document or replaces its content by ID. CreatedAt
// is preserved for existing documents; UpdatedAt always moves forward.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, string(metadataJSON), doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, metadata, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &doc, nil
}

// DeleteDocument removes a document and its chunks by ID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, metadata, created_at, updated_at
		 FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var metadataJSON string
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if metadataJSON != "" {
			_ = json.Unmarshal([]byte(metadataJSON), &doc.Metadata)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// ReplaceChunks atomically swaps a source's chunks: prior rows are deleted
// and the new set inserted in one transaction.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, sourceID string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source_id, content, sequence_index, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.SourceID, chunk.Content, chunk.SequenceIndex, chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksBySource returns all chunks for a source ordered by sequence.
func (s *SQLiteStorage) GetChunksBySource(ctx context.Context, sourceID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, content, sequence_index, created_at
		 FROM chunks WHERE source_id = ? ORDER BY sequence_index`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.Content, &chunk.SequenceIndex, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunksBySource removes all chunks for a source.
func (s *SQLiteStorage) DeleteChunksBySource(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID)
	return err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
