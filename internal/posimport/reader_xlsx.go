package posimport

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// xlsxReader loads the first worksheet of a spreadsheet export.
type xlsxReader struct{}

func (r *xlsxReader) ReadFile(path string) (FileRows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return FileRows{}, fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return FileRows{}, fmt.Errorf("%w: no worksheets", ErrFileUnreadable)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return FileRows{}, fmt.Errorf("%w: read worksheet: %v", ErrFileUnreadable, err)
	}
	if len(rows) == 0 {
		return FileRows{}, fmt.Errorf("%w: empty worksheet", ErrFileUnreadable)
	}
	return FileRows{Header: rows[0], Rows: rows[1:]}, nil
}
