package report

import (
	"fmt"
	"image/color"
	"io"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	traceLogMin = 1e-8
	traceLogMax = 10
)

// TraceColors cycles over variable groups: blue, green, red, cyan and magenta.
var TraceColors = []color.Color{
	color.RGBA{B: 255, A: 255},
	color.RGBA{G: 128, A: 255},
	color.RGBA{R: 255, A: 255},
	color.RGBA{G: 191, B: 191, A: 255},
	color.RGBA{R: 191, B: 191, A: 255},
}

// TraceOptions controls the variable trace chart.
type TraceOptions struct {
	Title   string
	XMax    float64 // last generation shown, 0 shows every row
	YMax    float64 // top of the linear panel, 0 fits the data
	Markers bool    // mark positive values on the linear panel
	Width   vg.Length
	Height  vg.Length
	Format  string
}

// DefaultTraceOptions returns a 12x8 inch PNG trace chart without an x limit.
func DefaultTraceOptions() TraceOptions {
	return TraceOptions{
		Width:  12 * vg.Inch,
		Height: 8 * vg.Inch,
		Format: "png",
	}
}

// TraceLayout splits v variables into a linear block followed by a log block
// and returns the linear column count and the size of each color group.
func TraceLayout(v int) (linear, groupSize int) {
	return v * 4 / 5, max(v/5, 1)
}

// traceLabel names the first column of each color group, e.g. "Variable 3-4".
func traceLabel(col, groupSize, v int) (string, bool) {
	if col%groupSize != 0 {
		return "", false
	}
	start, end := col+1, min(col+groupSize, v)
	if start == end {
		return fmt.Sprintf("Variable %d", start), true
	}
	return fmt.Sprintf("Variable %d-%d", start, end), true
}

// RenderTrace draws each column of data against its row index. The first
// block of columns goes on a linear "SD" panel, the rest on a log panel below.
func RenderTrace(w io.Writer, data *mat.Dense, opts TraceOptions) error {
	if data == nil {
		return ErrNoSeries
	}
	format, err := CheckFormat(opts.Format)
	if err != nil {
		return err
	}
	rows, v := data.Dims()
	linearCols, groupSize := TraceLayout(v)

	xMax := opts.XMax
	if xMax <= 0 {
		xMax = float64(max(rows-1, 1))
	}

	lin := plot.New()
	lin.Title.Text = opts.Title
	lin.Y.Label.Text = "SD"
	lin.Legend.Top = true
	lin.Add(plotter.NewGrid())

	logp := plot.New()
	logp.X.Label.Text = "Generation"
	logp.Y.Label.Text = "SD (log)"
	logp.Y.Scale = plot.LogScale{}
	logp.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: 1e-8, Label: "1e-08"},
		{Value: 1e-5, Label: "1e-05"},
		{Value: 1e-2, Label: "1e-02"},
		{Value: 10, Label: "1e+01"},
	})
	logp.Legend.Top = true
	logp.Add(plotter.NewGrid())

	for col := 0; col < v; col++ {
		logPanel := col >= linearCols
		pts := traceColumn(data, col, logPanel)
		if len(pts) == 0 {
			continue
		}
		lineColor := TraceColors[(col/groupSize)%len(TraceColors)]

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create trace line %d: %w", col+1, err)
		}
		line.Color = lineColor
		line.Width = vg.Points(1)

		target := lin
		if logPanel {
			target = logp
		}
		target.Add(line)
		if label, ok := traceLabel(col, groupSize, v); ok {
			target.Legend.Add(label, line)
		}

		if opts.Markers && !logPanel {
			marks := positivePoints(pts)
			if len(marks) == 0 {
				continue
			}
			sc, err := plotter.NewScatter(marks)
			if err != nil {
				return fmt.Errorf("failed to create markers for variable %d: %w", col+1, err)
			}
			sc.Color = lineColor
			sc.Shape = draw.CircleGlyph{}
			sc.Radius = vg.Points(3)
			lin.Add(sc)
		}
	}

	// Fixed ranges are applied after Add, which widens axes to the data.
	lin.X.Min, lin.X.Max = 0, xMax
	logp.X.Min, logp.X.Max = 0, xMax
	logp.Y.Min, logp.Y.Max = traceLogMin, traceLogMax
	if opts.YMax > 0 {
		lin.Y.Min, lin.Y.Max = 0, opts.YMax
	}

	c, err := draw.NewFormattedCanvas(opts.Width, opts.Height, format)
	if err != nil {
		return fmt.Errorf("failed to create trace canvas: %w", err)
	}
	plots := [][]*plot.Plot{{lin}, {logp}}
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter,
		PadTop:    vg.Points(2),
		PadBottom: vg.Points(2),
		PadLeft:   vg.Points(2),
		PadRight:  vg.Points(2),
	}
	canvases := plot.Align(plots, tiles, draw.New(c))
	for j := range plots {
		plots[j][0].Draw(canvases[j][0])
	}

	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write trace chart: %w", err)
	}
	return nil
}

// SaveTrace renders the trace chart into path, creating its directory.
func SaveTrace(fsys afero.Fs, path string, data *mat.Dense, opts TraceOptions) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	opts.Format = format
	return WriteFile(fsys, path, func(w io.Writer) error {
		return RenderTrace(w, data, opts)
	})
}

// traceColumn returns (row, value) pairs of one column. Log panel columns
// keep positive values only.
func traceColumn(data *mat.Dense, col int, positiveOnly bool) plotter.XYs {
	rows, _ := data.Dims()
	pts := make(plotter.XYs, 0, rows)
	for r := 0; r < rows; r++ {
		v := data.At(r, col)
		if !finite(v) || (positiveOnly && v <= 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(r), Y: v})
	}
	return pts
}

func positivePoints(pts plotter.XYs) plotter.XYs {
	out := make(plotter.XYs, 0, len(pts))
	for _, p := range pts {
		if p.Y > 0 {
			out = append(out, p)
		}
	}
	return out
}
