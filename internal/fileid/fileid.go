// Package fileid derives stable document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "doc:"

// FileDocID returns a deterministic document ID for a file path. The path is
// cleaned first, so lexical variants of the same location map to one ID and
// re-ingesting a file replaces its earlier chunks instead of duplicating them.
func FileDocID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(sum[:16])
}
