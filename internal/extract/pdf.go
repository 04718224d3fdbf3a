package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the plain text of every page, one page per line.
// Pages that resolve to a null object are skipped instead of failing the
// whole document.
func extractPDF(content []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("parse PDF: %w", err)
	}
	var pages []string
	for n := 1; n <= doc.NumPage(); n++ {
		page := doc.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", n, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}
