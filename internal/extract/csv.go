package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// extractCSV flattens CSV rows into tab-separated lines, matching the shape
// Excel extraction produces so downstream chunking treats both alike.
func extractCSV(content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse CSV: %w", err)
		}
		b.WriteString(strings.Join(record, "\t"))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}
