package posimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileRows is a fully read vendor export: the header row and the data rows
// in original file order.
type FileRows struct {
	Header []string
	Rows   [][]string
}

// RowReader loads one vendor export file. Implementations exist for CSV and
// XLSX exports; any failure here is a file-level fault that aborts the run.
type RowReader interface {
	ReadFile(path string) (FileRows, error)
}

// NewRowReader picks the reader matching the profile's file format.
func NewRowReader(profile VendorProfile) RowReader {
	if profile.Format == FormatXLSX {
		return &xlsxReader{}
	}
	return &csvReader{delimiter: profile.Delimiter}
}

type csvReader struct {
	delimiter string
}

func (r *csvReader) ReadFile(path string) (FileRows, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileRows{}, fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if r.delimiter != "" {
		reader.Comma = rune(r.delimiter[0])
	}

	var out FileRows
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return FileRows{}, fmt.Errorf("%w: parse csv: %v", ErrFileUnreadable, err)
		}
		if out.Header == nil {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
			out.Header = record
			continue
		}
		out.Rows = append(out.Rows, record)
	}
	if out.Header == nil {
		return FileRows{}, fmt.Errorf("%w: empty file", ErrFileUnreadable)
	}
	return out, nil
}
