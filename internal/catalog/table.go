// Package catalog loads product catalogs from spreadsheets and images into
// the vector index.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFile is returned for files that are neither CSV nor Excel.
var ErrUnsupportedFile = errors.New("unsupported catalog file")

// Table is a catalog sheet: a header row and its data rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Value returns the cell of row i in the named column.
func (t *Table) Value(i int, column string) string {
	for c, name := range t.Columns {
		if name == column {
			if c < len(t.Rows[i]) {
				return t.Rows[i][c]
			}
			return ""
		}
	}
	return ""
}

// HasColumn reports whether the header contains column.
func (t *Table) HasColumn(column string) bool {
	for _, name := range t.Columns {
		if name == column {
			return true
		}
	}
	return false
}

// RowText renders row i as "column: value | column: value".
func (t *Table) RowText(i int) string {
	parts := make([]string, 0, len(t.Columns))
	for c, name := range t.Columns {
		var v string
		if c < len(t.Rows[i]) {
			v = t.Rows[i][c]
		}
		parts = append(parts, name+": "+v)
	}
	return strings.Join(parts, " | ")
}

// Open reads a .csv, .xlsx or .xlsm file.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, "")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
}

// ReadCSV parses a CSV catalog. Rows may be shorter than the header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return newTable(records)
}

// ReadXLSX parses one sheet of an Excel workbook; an empty sheet name
// selects the first sheet.
func ReadXLSX(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	return newTable(rows)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.New("catalog is empty")
	}
	t := &Table{}
	for i, name := range records[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		t.Columns = append(t.Columns, name)
	}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = strings.TrimSpace(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
