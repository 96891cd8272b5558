package render

import (
	"fmt"
	"strings"
)

// ChartKind is the closed set of charts the pipeline can draw.
type ChartKind int

const (
	KindPie ChartKind = iota + 1
	KindScatter
	KindBar
	KindHistogram
	KindLine
	KindHighchartColumn
	KindHighchartLine
)

var kindTags = []struct {
	kind  ChartKind
	tag   string
	title string
}{
	{KindPie, "pie", "Pie"},
	{KindScatter, "scatter", "Scatter"},
	{KindBar, "bar", "Bar"},
	{KindHistogram, "histogram", "Histogram"},
	{KindLine, "line", "Line"},
	{KindHighchartColumn, "highchart_column", "Highchart column"},
	{KindHighchartLine, "highchart_line", "Highchart line"},
}

// legacy form value kept for old upload pages
const legacyHighchartTag = "highchart"

// ParseChartKind maps a form tag to a ChartKind.
func ParseChartKind(tag string) (ChartKind, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == legacyHighchartTag {
		return KindHighchartLine, nil
	}
	for _, k := range kindTags {
		if k.tag == tag {
			return k.kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedChartType, tag)
}

// Kinds lists every chart kind in display order.
func Kinds() []ChartKind {
	kinds := make([]ChartKind, 0, len(kindTags))
	for _, k := range kindTags {
		kinds = append(kinds, k.kind)
	}
	return kinds
}

func (k ChartKind) String() string {
	for _, t := range kindTags {
		if t.kind == k {
			return t.tag
		}
	}
	return fmt.Sprintf("ChartKind(%d)", int(k))
}

// Title is the human readable name shown in the upload form.
func (k ChartKind) Title() string {
	for _, t := range kindTags {
		if t.kind == k {
			return t.title
		}
	}
	return k.String()
}

// NeedsY reports whether the kind plots a second column. Pie and histogram
// only use the x column.
func (k ChartKind) NeedsY() bool {
	return k != KindPie && k != KindHistogram
}

// RequiredColumns returns the columns that must exist for this kind.
func (k ChartKind) RequiredColumns(x, y string) []string {
	if k.NeedsY() {
		return []string{x, y}
	}
	return []string{x}
}
