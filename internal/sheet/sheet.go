// Package sheet decodes spreadsheet workbooks into named grids of cell text.
package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet is one named 2-D grid of cell texts.
type Sheet struct {
	Name string
	Rows [][]string
}

// Decode reads an .xlsx workbook and returns its sheets in file order.
// Cell values come back as the cell's formatted text: numbers and dates
// render the way the cell's number format displays them, blank cells are
// empty strings. Rows may be ragged; trailing empty cells are trimmed.
func Decode(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}

	return sheets, nil
}
