package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders every sheet as tab-separated rows. A "Sheet:" header
// precedes each sheet's rows only when the workbook holds more than one, so
// the common single-sheet case stays free of boilerplate.
func extractExcel(content []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	var b strings.Builder
	for _, name := range sheets {
		rows, err := wb.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", name, err)
		}
		if len(sheets) > 1 {
			fmt.Fprintf(&b, "Sheet: %s\n", name)
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}
