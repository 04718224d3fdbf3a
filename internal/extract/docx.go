package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxBodyPath is the conventional main document part in a .docx package.
const docxBodyPath = "word/document.xml"

// docxBodyContentType identifies the main document part in [Content_Types].xml.
const docxBodyContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// extractDOCX reads the WordprocessingML body of a .docx package and joins
// paragraph texts with newlines. Text runs inside a paragraph are
// concatenated, so a sentence split across runs stays whole.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	body, err := readZipPart(zr, docxBodyPart(zr))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	text, err := docxParagraphs(body)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	return text, nil
}

// docxBodyPart resolves the main document part from [Content_Types].xml,
// falling back to the conventional path. Word names the part
// word/document.xml, but the spec allows any part declared with the main
// document content type.
func docxBodyPart(zr *zip.Reader) string {
	raw, err := readZipPart(zr, "[Content_Types].xml")
	if err != nil {
		return docxBodyPath
	}
	var types struct {
		Overrides []struct {
			PartName    string `xml:"PartName,attr"`
			ContentType string `xml:"ContentType,attr"`
		} `xml:"Override"`
	}
	if err := xml.Unmarshal(raw, &types); err != nil {
		return docxBodyPath
	}
	for _, o := range types.Overrides {
		if o.ContentType == docxBodyContentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return docxBodyPath
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

// docxParagraphs walks the XML token stream, gathering character data inside
// <w:t> elements and closing a paragraph at each </w:p>. Explicit breaks and
// tabs inside runs are kept as whitespace.
func docxParagraphs(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed document body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br", "cr":
				current.WriteByte('\n')
			case "tab":
				current.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}
