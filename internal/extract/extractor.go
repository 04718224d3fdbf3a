// Package extract provides text extraction from various document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat marks files whose format has no text extraction,
// such as images, which would need an OCR engine.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// imageExts are rejected outright: decoding them yields pixels, not text,
// and no OCR engine is wired in.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tiff": true, ".tif": true, ".webp": true,
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Plain text files (.txt, .md) are returned as-is after UTF-8 validation.
// PDF, DOCX, Excel, CSV, and SQLite databases are converted to text.
// Returns an error if the file cannot be read or the format cannot be parsed.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	// SQLite needs a file on disk for the driver; skip the byte round trip.
	if ext == ".db" || ext == ".sqlite" {
		return extractSQLite(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".csv":
		return extractCSV(content)
	case ".db", ".sqlite":
		return extractSQLiteBytes(content)
	case ".txt", ".md", "":
		return extractPlain(content)
	default:
		if imageExts[ext] {
			return "", fmt.Errorf("%w: %s needs OCR to yield text", ErrUnsupportedFormat, ext)
		}
		// Other unknown extensions: treat as plain text
		return extractPlain(content)
	}
}
