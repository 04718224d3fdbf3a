// Package e2e; this file builds minimal files for the supported ingest formats.
package e2e

import (
	"archive/zip"
	"bytes"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of file extensions used in file-based
// e2e tests. PDF is not generated here (no minimal PDF with extractable text);
// that path is covered by internal/extract tests. SQLite files are likewise
// exercised in internal/extract.
var SupportedFileExtensions = []string{
	".txt", ".md", ".csv",
	".docx", ".xlsx",
}

// WriteMinimalFile returns the byte content of a minimal file of the given
// extension carrying the given text. For plain types the content is the raw
// text; for binary types it is the encoded file.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".txt", ".md", ".csv":
		return []byte(text), nil
	case ".docx":
		return minimalDocx(text), nil
	case ".xlsx":
		return minimalXlsx(text), nil
	default:
		return []byte(text), nil
	}
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalXlsx(text string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", text)
	var buf bytes.Buffer
	_, _ = f.WriteTo(&buf)
	return buf.Bytes()
}
