package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/user/coco_analyzer_go/internal/analysis"
)

// NaNColor fills heatmap cells of missing trials.
var NaNColor = color.Gray{Y: 200}

// HeatmapOptions controls the trial heatmap.
type HeatmapOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	Format string
}

// DefaultHeatmapOptions returns a 10x5 inch PNG heatmap.
func DefaultHeatmapOptions() HeatmapOptions {
	return HeatmapOptions{
		Title:  "Final value per trial",
		Width:  10 * vg.Inch,
		Height: 5 * vg.Inch,
		Format: "png",
	}
}

// trialGrid lays groups out as rows and trial indices as columns.
// The first group is drawn at the top.
type trialGrid struct {
	z *mat.Dense
}

func newTrialGrid(series []analysis.GroupSeries) *trialGrid {
	cols := 1
	for _, s := range series {
		cols = max(cols, len(s.TrialFinals))
	}
	z := mat.NewDense(len(series), cols, nil)
	for r, s := range series {
		for c := 0; c < cols; c++ {
			v := math.NaN()
			if c < len(s.TrialFinals) {
				v = s.TrialFinals[c]
			}
			z.Set(r, c, v)
		}
	}
	return &trialGrid{z: z}
}

func (g *trialGrid) Dims() (c, r int) {
	r, c = g.z.Dims()
	return c, r
}

func (g *trialGrid) Z(c, r int) float64 { return g.z.At(r, c) }
func (g *trialGrid) X(c int) float64    { return float64(c) }
func (g *trialGrid) Y(r int) float64 {
	rows, _ := g.z.Dims()
	return float64(rows - 1 - r)
}

// finiteRange returns the smallest and largest non-NaN cell.
func (g *trialGrid) finiteRange() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	rows, cols := g.z.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := g.z.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	return lo, hi, lo <= hi
}

// RenderTrialHeatmap draws the final value of every trial of every group.
// Missing trials are filled with NaNColor. A horizontal color bar is drawn
// beneath the map.
func RenderTrialHeatmap(w io.Writer, series []analysis.GroupSeries, opts HeatmapOptions) error {
	if len(series) == 0 {
		return ErrNoSeries
	}
	format, err := CheckFormat(opts.Format)
	if err != nil {
		return err
	}

	grid := newTrialGrid(series)
	lo, hi, ok := grid.finiteRange()
	if !ok {
		lo, hi = 0, 1
	}
	if lo == hi {
		hi = lo + 1
	}

	cmap := moreland.Kindlmann()
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	hm := plotter.NewHeatMap(grid, cmap.Palette(255))
	hm.Min, hm.Max = lo, hi
	hm.NaN = NaNColor

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Trial"
	p.Y.Label.Text = "Group"
	p.Add(hm)

	cols, rows := grid.Dims()
	yTicks := make([]plot.Tick, rows)
	for r, s := range series {
		yTicks[r] = plot.Tick{Value: grid.Y(r), Label: s.Group}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)
	p.Y.Min = -0.5
	p.Y.Max = float64(rows) - 0.5

	xTicks := make([]plot.Tick, cols)
	for c := range xTicks {
		xTicks[c] = plot.Tick{Value: float64(c), Label: strconv.Itoa(c)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.X.Min = -0.5
	p.X.Max = float64(cols) - 0.5

	bar := plot.New()
	bar.HideY()
	bar.X.Padding = 0
	bar.Add(&plotter.ColorBar{ColorMap: cmap})

	c, err := draw.NewFormattedCanvas(opts.Width, opts.Height, format)
	if err != nil {
		return fmt.Errorf("failed to create heatmap canvas: %w", err)
	}
	dc := draw.New(c)
	barHeight := opts.Height / 6
	p.Draw(draw.Crop(dc, 0, 0, barHeight, 0))
	bar.Draw(draw.Crop(dc, 0, 0, 0, barHeight-opts.Height))

	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write heatmap: %w", err)
	}
	return nil
}

// SaveTrialHeatmap renders the heatmap into path, creating its directory.
func SaveTrialHeatmap(fsys afero.Fs, path string, series []analysis.GroupSeries, opts HeatmapOptions) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	opts.Format = format
	return WriteFile(fsys, path, func(w io.Writer) error {
		return RenderTrialHeatmap(w, series, opts)
	})
}
