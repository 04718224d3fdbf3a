// Package cli provides CLI output helpers for Kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes an answer and its retrieval provenance to w in the
// given format. Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, record *models.AnswerRecord, retrieval *models.RetrievalResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"answer":            record.Answer,
			"status":            record.Status,
			"supporting_chunks": record.SupportingChunks,
			"retrieval":         retrieval,
		})
	default:
		writeAnswerText(w, record, retrieval)
		return nil
	}
}

func writeAnswerText(w io.Writer, record *models.AnswerRecord, retrieval *models.RetrievalResult) {
	fmt.Fprintf(w, "\n%s\n", record.Answer)
	if record.Status != models.StatusAnswered {
		fmt.Fprintf(w, "\nStatus: %s\n", record.Status)
	}
	if retrieval.Empty() {
		return
	}
	fmt.Fprintf(w, "\nRetrieved %d chunks in %dms:\n", len(retrieval.Chunks), retrieval.QueryTime)
	for i, rc := range retrieval.Chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] Score: %.4f | Source: %s (chunk %d)\n",
			i+1, rc.Score, rc.Chunk.SourceID, rc.Chunk.SequenceIndex)
		fmt.Fprintf(w, "%s\n", Truncate(rc.Chunk.Content, 200))
	}
	fmt.Fprintln(w)
}

// PrintAnswer prints an answer to stdout in text format.
func PrintAnswer(record *models.AnswerRecord, retrieval *models.RetrievalResult) {
	_ = WriteAnswer(os.Stdout, record, retrieval, OutputText)
}

// WriteStatus writes pipeline status to w in the given format.
func WriteStatus(w io.Writer, st *pipeline.Status, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	default:
		fmt.Fprintf(w, "Documents:     %d\n", st.Documents)
		fmt.Fprintf(w, "Chunks:        %d\n", st.Chunks)
		fmt.Fprintf(w, "Index entries: %d\n", st.IndexEntries)
		return nil
	}
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
