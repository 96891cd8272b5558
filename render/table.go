package render

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is the active sheet of a workbook: the first row names the columns
// and every following row is data.
type Table struct {
	Sheet   string
	Headers []string

	rows [][]string // display values
	raw  [][]string // unformatted values, used for numbers
}

// ReadTable parses the active sheet of an xlsx workbook.
func ReadTable(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheet := activeSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnsupportedFormat)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return newTable(sheet, rows, raw), nil
}

func newTable(sheet string, rows, raw [][]string) *Table {
	t := &Table{Sheet: sheet}
	if len(rows) == 0 {
		return t
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	t.Headers = make([]string, width)
	for i := range width {
		h := ""
		if i < len(rows[0]) {
			h = strings.TrimSpace(rows[0][i])
		}
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		t.Headers[i] = h
	}

	t.rows = padRows(rows[1:], width)
	if len(raw) > 1 {
		t.raw = padRows(raw[1:], width)
	}
	for len(t.raw) < len(t.rows) {
		t.raw = append(t.raw, make([]string, width))
	}
	return t
}

func padRows(rows [][]string, width int) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return out
}

// Len is the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) columnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the header row contains name.
func (t *Table) HasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

// RequireColumns fails with a MissingColumnError for the first name the
// header row does not contain.
func (t *Table) RequireColumns(names ...string) error {
	for _, n := range names {
		if !t.HasColumn(n) {
			return &MissingColumnError{Column: n}
		}
	}
	return nil
}

// Labels returns the display values of a column.
func (t *Table) Labels(name string) ([]string, error) {
	idx := t.columnIndex(name)
	if idx < 0 {
		return nil, &MissingColumnError{Column: name}
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Numbers returns a column as floats. Empty cells become NaN; any other
// value that is not a number is an error.
func (t *Table) Numbers(name string) ([]float64, error) {
	idx := t.columnIndex(name)
	if idx < 0 {
		return nil, &MissingColumnError{Column: name}
	}
	out := make([]float64, len(t.raw))
	for i, r := range t.raw {
		cell := strings.TrimSpace(r[idx])
		if cell == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, renderErrorf("column %q row %d: %q is not numeric", name, i+2, cell)
		}
		out[i] = v
	}
	return out, nil
}

// IsNumeric reports whether every non-empty cell of the column parses as a
// number.
func (t *Table) IsNumeric(name string) bool {
	_, err := t.Numbers(name)
	return err == nil
}

func activeSheet(f *excelize.File) string {
	if name := f.GetSheetName(f.GetActiveSheetIndex()); name != "" {
		return name
	}
	if list := f.GetSheetList(); len(list) > 0 {
		return list[0]
	}
	return ""
}
