package render

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat    = errors.New("unsupported file format, expected an .xlsx workbook")
	ErrUnsupportedChartType = errors.New("unsupported chart type")
	ErrMissingColumn        = errors.New("missing column")
	ErrRender               = errors.New("chart render failed")
)

// MissingColumnError names a requested column that the workbook header row
// does not contain. It matches ErrMissingColumn.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found in workbook", e.Column)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

func renderErrorf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrRender, fmt.Sprintf(format, a...))
}
