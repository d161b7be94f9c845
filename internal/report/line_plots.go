package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/spf13/afero"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/user/coco_analyzer_go/internal/analysis"
)

var (
	// ErrNoSeries is returned when there is nothing to draw.
	ErrNoSeries = errors.New("no series to plot")
	// ErrInvalidRange is returned for axis bounds the scale cannot represent.
	ErrInvalidRange = errors.New("invalid axis range")
)

// legendGap separates the end of a connector from its label.
const legendGap = 4 * vg.Millimeter

// Range is a fixed axis interval.
type Range struct {
	Min, Max float64
}

// ChartOptions controls the comparison chart. Nil ranges are fitted to the data.
type ChartOptions struct {
	Title  string
	XLabel string
	YLabel string

	XRange *Range
	YRange *Range
	LogX   bool

	Sigma      float64 // Gaussian smoothing in samples, 0 draws the raw series
	ReferenceX float64
	Threshold  float64

	Palette     string // ColorBrewer qualitative name, empty for DefaultColors
	Width       vg.Length
	Height      vg.Length
	LegendWidth vg.Length // right margin reserved for labels
	LineWidth   vg.Length
	Format      string
}

// DefaultChartOptions returns a 12x6 inch PNG with a fifth of the width given to the legend.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Title:       "benchmarking",
		XLabel:      "evaluation",
		YLabel:      "target hit rate",
		ReferenceX:  analysis.DefaultReferenceX,
		Threshold:   analysis.DefaultReachThreshold,
		Width:       12 * vg.Inch,
		Height:      6 * vg.Inch,
		LegendWidth: 2.4 * vg.Inch,
		LineWidth:   vg.Points(2),
		Format:      "png",
	}
}

// legendEntry is one out-of-plot label and the connector to its curve.
type legendEntry struct {
	Group     string
	Color     color.Color
	Label     vg.Point // left-center of the label text
	Anchor    vg.Point // terminal point of the curve on the data canvas
	HasAnchor bool
}

// RenderComparison draws every series on one chart and writes it to w in
// opts.Format. Labels are stacked in the right margin in ranking order and
// joined to the terminal point of their curve. The rankings used for the
// legend are returned.
func RenderComparison(w io.Writer, series []analysis.GroupSeries, opts ChartOptions) ([]analysis.Ranking, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}
	format, err := CheckFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if err := checkRanges(opts); err != nil {
		return nil, err
	}

	groups := make([]string, len(series))
	for i, s := range series {
		groups[i] = s.Group
	}
	colors, err := AssignColors(groups, opts.Palette)
	if err != nil {
		return nil, err
	}

	// Ranking keys come from the raw aggregate, not the smoothed curve.
	rankings := analysis.RankGroups(series, opts.ReferenceX, opts.Threshold)

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	if opts.LogX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	grid := plotter.NewGrid()
	grid.Vertical.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	grid.Vertical.Width = vg.Points(0.5)
	grid.Horizontal = grid.Vertical
	p.Add(grid)

	curves := make(map[string]plotter.XYs, len(series))
	for _, s := range series {
		pts := curvePoints(s.X, analysis.GaussianSmooth(s.Y, opts.Sigma), opts.LogX)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create line for %s: %w", s.Group, err)
		}
		line.Color = colors[s.Group]
		line.Width = opts.LineWidth
		p.Add(line)
		curves[s.Group] = pts
	}
	if len(curves) == 0 {
		return nil, fmt.Errorf("%w: every point falls outside the x scale", ErrNoSeries)
	}

	applyRange(&p.X, opts.XRange)
	applyRange(&p.Y, opts.YRange)

	c, err := draw.NewFormattedCanvas(opts.Width, opts.Height, format)
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas: %w", err)
	}
	dc := draw.New(c)
	area := draw.Crop(dc, 0, -opts.LegendWidth, 0, 0)
	p.Draw(area)

	da := p.DataCanvas(area)
	trX, trY := p.Transforms(&da)

	anchors := make(map[string]vg.Point, len(curves))
	for group, pts := range curves {
		x, y, ok := terminalPoint(pts, p.X.Max)
		if !ok {
			continue
		}
		anchors[group] = clampPoint(vg.Point{X: trX(x), Y: trY(y)}, da.Rectangle)
	}

	style := p.Legend.TextStyle
	lineHeight := style.Height("M") * 1.8
	slots := legendSlots(len(rankings), da.Max.Y, da.Min.Y, lineHeight)
	entries := planLegend(rankings, colors, anchors, slots, area.Max.X+legendGap)
	drawLegend(dc, entries, style, opts.LineWidth/2)

	if _, err := c.WriteTo(w); err != nil {
		return nil, fmt.Errorf("failed to write chart: %w", err)
	}
	return rankings, nil
}

// SaveComparison renders the chart into path, creating its directory.
// The format follows the file extension.
func SaveComparison(fsys afero.Fs, path string, series []analysis.GroupSeries, opts ChartOptions) ([]analysis.Ranking, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	var rankings []analysis.Ranking
	err = WriteFile(fsys, path, func(w io.Writer) error {
		var rerr error
		rankings, rerr = RenderComparison(w, series, opts)
		return rerr
	})
	return rankings, err
}

func checkRanges(opts ChartOptions) error {
	for name, r := range map[string]*Range{"x": opts.XRange, "y": opts.YRange} {
		if r == nil {
			continue
		}
		if !(r.Min < r.Max) {
			return fmt.Errorf("%w: %s min %g must be below max %g", ErrInvalidRange, name, r.Min, r.Max)
		}
	}
	if opts.LogX && opts.XRange != nil && opts.XRange.Min <= 0 {
		return fmt.Errorf("%w: log x axis needs a positive minimum, got %g", ErrInvalidRange, opts.XRange.Min)
	}
	return nil
}

func applyRange(axis *plot.Axis, r *Range) {
	if r == nil {
		return
	}
	axis.Min = r.Min
	axis.Max = r.Max
}

// curvePoints pairs x and y, dropping non-finite values and, on a log x
// axis, non-positive x.
func curvePoints(x, y []float64, logX bool) plotter.XYs {
	n := min(len(x), len(y))
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		if logX && x[i] <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// terminalPoint returns the last point with X <= xMax.
func terminalPoint(pts plotter.XYs, xMax float64) (x, y float64, ok bool) {
	for i := len(pts) - 1; i >= 0; i-- {
		if pts[i].X <= xMax {
			return pts[i].X, pts[i].Y, true
		}
	}
	return 0, 0, false
}

func clampPoint(pt vg.Point, r vg.Rectangle) vg.Point {
	pt.X = max(r.Min.X, min(r.Max.X, pt.X))
	pt.Y = max(r.Min.Y, min(r.Max.Y, pt.Y))
	return pt
}

// legendSlots returns n label centers stacked downwards from top. Rows are
// lineHeight apart unless that would run past bottom.
func legendSlots(n int, top, bottom, lineHeight vg.Length) []vg.Length {
	if n <= 0 {
		return nil
	}
	step := lineHeight
	if avail := (top - bottom) / vg.Length(n); avail < step {
		step = avail
	}
	ys := make([]vg.Length, n)
	for i := range ys {
		ys[i] = top - step*(vg.Length(i)+0.5)
	}
	return ys
}

// planLegend places one label per ranking. rankings must already be sorted.
func planLegend(rankings []analysis.Ranking, colors map[string]color.Color, anchors map[string]vg.Point, slots []vg.Length, labelX vg.Length) []legendEntry {
	entries := make([]legendEntry, 0, len(rankings))
	for i, r := range rankings {
		if i >= len(slots) {
			break
		}
		anchor, ok := anchors[r.Group]
		entries = append(entries, legendEntry{
			Group:     r.Group,
			Color:     colors[r.Group],
			Label:     vg.Point{X: labelX, Y: slots[i]},
			Anchor:    anchor,
			HasAnchor: ok,
		})
	}
	return entries
}

func drawLegend(c draw.Canvas, entries []legendEntry, style text.Style, width vg.Length) {
	style.XAlign = draw.XLeft
	style.YAlign = draw.YCenter
	for _, e := range entries {
		if e.HasAnchor {
			c.StrokeLine2(draw.LineStyle{Color: e.Color, Width: width},
				e.Anchor.X, e.Anchor.Y, e.Label.X-legendGap/2, e.Label.Y)
		}
		c.FillText(style, e.Label, e.Group)
	}
}
