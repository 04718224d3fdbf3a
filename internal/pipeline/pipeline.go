// Package pipeline wires chunking, embedding, indexing, retrieval, and
// answer synthesis into the two top-level operations: ingest and ask.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Pipeline runs documents through chunk, embed, index and answers questions
// against the result.
type Pipeline struct {
	storage     storage.Storage
	embedder    embedding.Embedder
	index       vector.VectorIndex
	chunker     *chunker.Chunker
	retriever   *retriever.Retriever
	synthesizer *answer.Synthesizer
	extractor   *extract.Extractor
	logger      *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug events (document ingested, file skipped, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline with the given dependencies.
// extractor may be nil; when nil, IngestFile treats all files as plain text.
func New(
	store storage.Storage,
	embedder embedding.Embedder,
	index vector.VectorIndex,
	ch *chunker.Chunker,
	ret *retriever.Retriever,
	synth *answer.Synthesizer,
	extractor *extract.Extractor,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		storage:     store,
		embedder:    embedder,
		index:       index,
		chunker:     ch,
		retriever:   ret,
		synthesizer: synth,
		extractor:   extractor,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestResult reports what one ingest did.
type IngestResult struct {
	DocumentID    string `json:"document_id"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// Ingest chunks a document, embeds the chunks, stores them, and indexes the
// vectors. Re-ingesting the same ID replaces the prior version completely:
// stale chunks are removed from both storage and the index before the new
// set goes in. ChunksIndexed reports how many vectors reached the index; on
// a mid-batch index failure it is the prefix that succeeded.
func (p *Pipeline) Ingest(ctx context.Context, input *models.DocumentInput) (*IngestResult, error) {
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	doc := &models.Document{
		ID:       input.ID,
		Title:    input.Title,
		Content:  input.Content,
		Metadata: input.Metadata,
	}

	chunks, err := p.chunker.Chunk(doc.ID, doc.Content)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := p.storage.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if err := p.storage.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	// A shrunken re-ingest must not strand old vectors, so the source's
	// entries are cleared before the upsert.
	if err := p.index.RemoveBySource(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("clear prior vectors: %w", err)
	}
	entries := make([]vector.IndexEntry, len(chunks))
	for i, ch := range chunks {
		entries[i] = vector.IndexEntry{
			ID:     ch.ID,
			Vector: ch.Embedding,
			Metadata: vector.EntryMetadata{
				Content:       ch.Content,
				SourceID:      ch.SourceID,
				SequenceIndex: ch.SequenceIndex,
			},
		}
	}
	n, err := p.index.Upsert(ctx, entries)
	if err != nil {
		return &IngestResult{DocumentID: doc.ID, ChunksIndexed: n}, fmt.Errorf("index vectors: %w", err)
	}

	p.logger.Debug("document ingested",
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", n))
	return &IngestResult{DocumentID: doc.ID, ChunksIndexed: n}, nil
}

// Ask retrieves the chunks most relevant to the question and synthesizes an
// answer grounded in them. The retrieval result rides along so callers can
// show scores and provenance.
func (p *Pipeline) Ask(ctx context.Context, question string, image *models.QuestionImage) (*models.AnswerRecord, *models.RetrievalResult, error) {
	retrieval, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, nil, err
	}
	record, err := p.synthesizer.Synthesize(ctx, question, retrieval, image)
	if err != nil {
		return record, retrieval, err
	}
	return record, retrieval, nil
}

// DeleteDocument removes a document from storage and its vectors from the index.
func (p *Pipeline) DeleteDocument(ctx context.Context, id string) error {
	if err := p.storage.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := p.index.RemoveBySource(ctx, id); err != nil {
		return fmt.Errorf("remove vectors: %w", err)
	}
	p.logger.Debug("document deleted", zap.String("doc_id", id))
	return nil
}

// GetDocument returns a stored document by ID.
func (p *Pipeline) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return p.storage.GetDocument(ctx, id)
}

// ListDocuments returns stored documents with offset and limit.
func (p *Pipeline) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	return p.storage.ListDocuments(ctx, offset, limit)
}

// Status summarizes what the pipeline currently holds.
type Status struct {
	Documents    int64 `json:"documents"`
	Chunks       int64 `json:"chunks"`
	IndexEntries int64 `json:"index_entries"`
}

// Status reports document, chunk, and index entry counts.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	docs, err := p.storage.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := p.storage.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	stats, err := p.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	return &Status{Documents: docs, Chunks: chunks, IndexEntries: stats.EntryCount}, nil
}

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// IngestFile extracts text from the file at path and ingests it. The document
// ID is derived from the absolute path, so re-ingesting a file updates the
// same document. Unchanged files (same mtime and size as last ingest) are
// skipped. If allowedExts is non-empty, the extension must be in the list.
func (p *Pipeline) IngestFile(ctx context.Context, path string, allowedExts []string) (*IngestResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	docID := fileid.FileDocID(absPath)
	if p.fileUnchanged(ctx, absPath, docID, info) {
		p.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		return &IngestResult{DocumentID: docID}, nil
	}

	text, err := p.extractContent(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	input := &models.DocumentInput{
		ID:      docID,
		Title:   filepath.Base(absPath),
		Content: text,
		Metadata: map[string]interface{}{
			metaKeySourcePath:  absPath,
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}
	result, err := p.Ingest(ctx, input)
	if err != nil {
		return result, err
	}
	p.logger.Debug("file ingested", zap.String("path", absPath), zap.String("doc_id", docID))
	return result, nil
}

// fileUnchanged reports whether the file was already ingested with the same
// mtime and size.
func (p *Pipeline) fileUnchanged(ctx context.Context, absPath, docID string, info os.FileInfo) bool {
	doc, err := p.storage.GetDocument(ctx, docID)
	if err != nil || doc.Metadata == nil {
		return false
	}
	if doc.Metadata[metaKeySourcePath] != absPath {
		return false
	}
	// Values are stored as strings to avoid JSON float64 precision loss
	// (UnixNano exceeds 53 bits).
	return metadataInt64(doc.Metadata, metaKeySourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(doc.Metadata, metaKeySourceSize) == info.Size()
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	switch n := m[key].(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func (p *Pipeline) extractContent(absPath string) (string, error) {
	if p.extractor != nil {
		return p.extractor.Extract(absPath)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IngestBytes extracts text from an uploaded file's bytes and ingests it
// under the given name. The extension decides the extraction format; the
// document ID is derived from the name, so re-uploading replaces the earlier
// version.
func (p *Pipeline) IngestBytes(ctx context.Context, name string, data []byte) (*IngestResult, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var text string
	var err error
	if p.extractor != nil {
		text, err = p.extractor.ExtractBytes(data, ext)
		if err != nil {
			return nil, fmt.Errorf("extract content: %w", err)
		}
	} else {
		text = string(data)
	}
	return p.Ingest(ctx, &models.DocumentInput{
		ID:      fileid.FileDocID(name),
		Title:   filepath.Base(name),
		Content: text,
		Metadata: map[string]interface{}{
			"source_name": name,
		},
	})
}

// IngestDirectory walks dir recursively and ingests each regular file whose
// extension is in allowedExts (all files when the list is empty). Returns the
// number of files ingested; files that fail are logged and skipped so one bad
// file does not abort the walk.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string, allowedExts []string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	count := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		if _, err := p.IngestFile(ctx, path, nil); err != nil {
			p.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			return nil
		}
		count++
		return nil
	})
	return count, err
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}
