package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_DocumentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:       "doc1",
		Title:    "Title",
		Content:  "Content",
		Metadata: map[string]interface{}{"k": "v"},
	}
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Title" || got.Content != "Content" {
		t.Errorf("got %+v", got)
	}
	if got.Metadata["k"] != "v" {
		t.Errorf("metadata round trip: %+v", got.Metadata)
	}

	doc.Title = "Updated"
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "doc1")
	if got.Title != "Updated" {
		t.Errorf("expected Updated, got %s", got.Title)
	}

	n, _ := store.CountDocuments(ctx)
	if n != 1 {
		t.Errorf("upsert should not duplicate, count = %d", n)
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if err := store.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	_, err = store.GetDocument(ctx, "doc1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDocument: expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_ReplaceChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertDocument(ctx, &models.Document{ID: "d1", Title: "T", Content: "C"}); err != nil {
		t.Fatal(err)
	}

	first := []*models.Chunk{
		{ID: "d1_0", SourceID: "d1", Content: "chunk1", SequenceIndex: 0},
		{ID: "d1_1", SourceID: "d1", Content: "chunk2", SequenceIndex: 1},
		{ID: "d1_2", SourceID: "d1", Content: "chunk3", SequenceIndex: 2},
	}
	if err := store.ReplaceChunks(ctx, "d1", first); err != nil {
		t.Fatal(err)
	}

	list, err := store.GetChunksBySource(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(list))
	}
	for i, c := range list {
		if c.SequenceIndex != i {
			t.Errorf("chunk %d out of order: sequence %d", i, c.SequenceIndex)
		}
	}

	// Re-ingesting with fewer chunks must not leave stale rows.
	second := []*models.Chunk{
		{ID: "d1_0", SourceID: "d1", Content: "rewritten", SequenceIndex: 0},
	}
	if err := store.ReplaceChunks(ctx, "d1", second); err != nil {
		t.Fatal(err)
	}
	list, _ = store.GetChunksBySource(ctx, "d1")
	if len(list) != 1 {
		t.Fatalf("expected 1 chunk after replace, got %d", len(list))
	}
	if list[0].Content != "rewritten" {
		t.Errorf("content = %q", list[0].Content)
	}

	if err := store.DeleteChunksBySource(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	list, _ = store.GetChunksBySource(ctx, "d1")
	if len(list) != 0 {
		t.Errorf("expected 0 chunks after delete, got %d", len(list))
	}
}

func TestSQLiteStorage_DeleteDocumentRemovesChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.UpsertDocument(ctx, &models.Document{ID: "d1", Content: "c"})
	_ = store.ReplaceChunks(ctx, "d1", []*models.Chunk{
		{ID: "d1_0", SourceID: "d1", Content: "x", SequenceIndex: 0},
	})

	if err := store.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	n, _ := store.CountChunks(ctx)
	if n != 0 {
		t.Errorf("expected chunks deleted with document, got %d", n)
	}
}

func TestSQLiteStorage_Counts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.CountDocuments(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountDocuments: %v, %d", err, n)
	}
	_ = store.UpsertDocument(ctx, &models.Document{ID: "x", Content: "c"})
	n, _ = store.CountDocuments(ctx)
	if n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}
}
