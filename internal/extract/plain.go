package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain passes content through as-is, repairing any invalid UTF-8
// sequences so downstream chunking always sees well-formed text.
func extractPlain(content []byte) (string, error) {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s, nil
}
