// Package render turns an uploaded workbook and a chart choice into a copy
// of that workbook with the chart embedded as an image.
//
// The pipeline is: check the file name, parse the active sheet, validate the
// requested columns, draw the chart with go-chart, reopen the workbook and
// anchor the PNG at E5 with excelize.
package render

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	XLSXExt         = ".xlsx"
	OutputName      = "output.xlsx"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Request describes one render.
type Request struct {
	Filename string
	Data     []byte
	Kind     ChartKind
	XColumn  string
	YColumn  string
}

// CheckFilename rejects anything that is not named like an xlsx workbook.
func CheckFilename(name string) error {
	if !strings.EqualFold(filepath.Ext(name), XLSXExt) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return nil
}

// ListColumns returns the header row of the workbook in file order.
func ListColumns(filename string, data []byte) ([]string, error) {
	if err := CheckFilename(filename); err != nil {
		return nil, err
	}
	t, err := ReadTable(data)
	if err != nil {
		return nil, err
	}
	if t.Headers == nil {
		return []string{}, nil
	}
	return t.Headers, nil
}

// Render runs the whole pipeline and returns the new workbook bytes.
func Render(req Request) ([]byte, error) {
	if err := CheckFilename(req.Filename); err != nil {
		return nil, err
	}
	t, err := ReadTable(req.Data)
	if err != nil {
		return nil, err
	}
	if err := t.RequireColumns(req.Kind.RequiredColumns(req.XColumn, req.YColumn)...); err != nil {
		return nil, err
	}

	png, err := Draw(req.Kind, t, req.XColumn, req.YColumn)
	if err != nil {
		return nil, err
	}
	return EmbedImage(req.Data, png)
}
