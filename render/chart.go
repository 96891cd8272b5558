package render

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	ImageWidth    = 640
	ImageHeight   = 480
	HistogramBins = 10
)

var (
	highchartBlue = drawing.ColorFromHex("7cb5ec")
	gridStyle     = chart.Style{
		StrokeColor:     drawing.ColorFromHex("cccccc"),
		StrokeWidth:     0.5,
		StrokeDashArray: []float64{4, 2},
	}
)

// Draw renders the chart for kind from the table columns as a PNG. Callers
// are expected to have validated the columns with RequireColumns.
func Draw(kind ChartKind, t *Table, x, y string) ([]byte, error) {
	switch kind {
	case KindPie:
		return drawPie(t, x)
	case KindScatter:
		return drawScatter(t, x, y)
	case KindBar:
		return drawBar(t, x, y, false)
	case KindHistogram:
		return drawHistogram(t, x)
	case KindLine:
		return drawLine(t, x, y, false)
	case KindHighchartColumn:
		return drawBar(t, x, y, true)
	case KindHighchartLine:
		return drawLine(t, x, y, true)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedChartType, kind)
}

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func toPNG(c renderable) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

func drawPie(t *Table, x string) ([]byte, error) {
	nums, err := t.Numbers(x)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, v := range nums {
		if math.IsNaN(v) {
			continue
		}
		if v < 0 {
			return nil, renderErrorf("pie values in %q must be non-negative", x)
		}
		total += v
	}
	if total == 0 {
		return nil, renderErrorf("column %q has no values to plot", x)
	}

	values := make([]chart.Value, 0, len(nums))
	for i, v := range nums {
		if math.IsNaN(v) || v == 0 {
			continue
		}
		values = append(values, chart.Value{
			Value: v,
			Label: fmt.Sprintf("%d (%.1f%%)", i, v/total*100),
		})
	}
	return toPNG(chart.PieChart{
		Title:  x,
		Width:  ImageWidth,
		Height: ImageHeight,
		Values: values,
	})
}

func drawScatter(t *Table, x, y string) ([]byte, error) {
	xs, err := t.Numbers(x)
	if err != nil {
		return nil, err
	}
	ys, err := t.Numbers(y)
	if err != nil {
		return nil, err
	}
	xs, ys = dropNaNPairs(xs, ys)
	if len(xs) == 0 {
		return nil, renderErrorf("columns %q and %q have no values to plot", x, y)
	}

	c := chart.Chart{
		Width:      ImageWidth,
		Height:     ImageHeight,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 10}},
		XAxis:      chart.XAxis{Name: x, Range: paddedRange(xs)},
		YAxis:      chart.YAxis{Name: y, Range: paddedRange(ys)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    y,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorTransparent,
					DotWidth:    4,
					DotColor:    chart.ColorBlue,
				},
			},
		},
	}
	return toPNG(c)
}

func drawBar(t *Table, x, y string, highchart bool) ([]byte, error) {
	labels, err := t.Labels(x)
	if err != nil {
		return nil, err
	}
	nums, err := t.Numbers(y)
	if err != nil {
		return nil, err
	}

	bars := make([]chart.Value, 0, len(nums))
	for i, v := range nums {
		if math.IsNaN(v) {
			continue
		}
		bar := chart.Value{Value: v, Label: labels[i]}
		if highchart {
			bar.Style = chart.Style{
				FillColor:   highchartBlue,
				StrokeColor: drawing.ColorBlack,
				StrokeWidth: 1,
			}
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, renderErrorf("column %q has no values to plot", y)
	}

	title := y
	if highchart {
		title = "Highchart Visualization"
	}
	return toPNG(newBarChart(title, bars))
}

func drawHistogram(t *Table, x string) ([]byte, error) {
	nums, err := t.Numbers(x)
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(nums))
	for _, v := range nums {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, renderErrorf("column %q has no values to plot", x)
	}

	edges, counts := Histogram(values, HistogramBins)
	bars := make([]chart.Value, len(counts))
	for i, n := range counts {
		bars[i] = chart.Value{
			Value: float64(n),
			Label: strconv.FormatFloat(edges[i], 'g', 3, 64),
		}
	}
	return toPNG(newBarChart(x, bars))
}

func drawLine(t *Table, x, y string, highchart bool) ([]byte, error) {
	ys, err := t.Numbers(y)
	if err != nil {
		return nil, err
	}

	var xs []float64
	var ticks []chart.Tick
	if t.IsNumeric(x) {
		xs, _ = t.Numbers(x)
	} else {
		// categories are plotted at their row position; the blank ticks at
		// -1 and n keep the axis range open when there is a single row
		labels, err := t.Labels(x)
		if err != nil {
			return nil, err
		}
		xs = make([]float64, len(labels))
		ticks = append(ticks, chart.Tick{Value: -1})
		for i, l := range labels {
			xs[i] = float64(i)
			ticks = append(ticks, chart.Tick{Value: float64(i), Label: l})
		}
		ticks = append(ticks, chart.Tick{Value: float64(len(labels))})
	}
	xs, ys = dropNaNPairs(xs, ys)
	if len(xs) == 0 {
		return nil, renderErrorf("columns %q and %q have no values to plot", x, y)
	}

	style := chart.Style{StrokeWidth: 2, StrokeColor: chart.ColorBlue}
	xAxis := chart.XAxis{Name: x, Range: paddedRange(xs), Ticks: ticks}
	yAxis := chart.YAxis{Name: y, Range: paddedRange(ys)}
	title := ""
	if highchart {
		title = "Highchart Visualization"
		style = chart.Style{
			StrokeWidth: 2,
			StrokeColor: highchartBlue,
			DotWidth:    4,
			DotColor:    highchartBlue,
		}
		xAxis.Name = "Categories"
		xAxis.GridMajorStyle = gridStyle
		yAxis.Name = "Values"
		yAxis.GridMajorStyle = gridStyle
	}

	c := chart.Chart{
		Title:      title,
		Width:      ImageWidth,
		Height:     ImageHeight,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 10}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series: []chart.Series{
			chart.ContinuousSeries{Name: y, XValues: xs, YValues: ys, Style: style},
		},
	}
	return toPNG(c)
}

func newBarChart(title string, bars []chart.Value) chart.BarChart {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = min(lo, b.Value)
		hi = max(hi, b.Value)
	}
	if lo == hi {
		hi = lo + 1
	}

	// keep every bar inside the canvas regardless of row count
	barWidth := max(4, (ImageWidth-120)/(2*len(bars)))
	xStyle := chart.Style{}
	if len(bars) > 8 {
		xStyle.TextRotationDegrees = 45
	}
	return chart.BarChart{
		Title:      title,
		Width:      ImageWidth,
		Height:     ImageHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		XAxis:      xStyle,
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Bars:       bars,
	}
}

// Histogram splits values into bins equal-width buckets between their
// minimum and maximum and returns the lower bucket edges with the counts.
// The last bucket is closed on both ends.
func Histogram(values []float64, bins int) ([]float64, []int) {
	if len(values) == 0 || bins <= 0 {
		return nil, nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	counts := make([]int, bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return edges, counts
}

// paddedRange widens a degenerate range so the axis can still be drawn;
// a nil result leaves the range to go-chart.
func paddedRange(values []float64) chart.Range {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo != hi {
		return nil
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}

func dropNaNPairs(xs, ys []float64) ([]float64, []float64) {
	n := min(len(xs), len(ys))
	outX := make([]float64, 0, n)
	outY := make([]float64, 0, n)
	for i := range n {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		outX = append(outX, xs[i])
		outY = append(outY, ys[i])
	}
	return outX, outY
}
