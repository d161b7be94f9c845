package report

import (
	"bytes"
	"image/color"
	"math"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/user/coco_analyzer_go/internal/analysis"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func constantSeries(group string, x []float64, v float64) analysis.GroupSeries {
	y := make([]float64, len(x))
	for i := range y {
		y[i] = v
	}
	return analysis.GroupSeries{Group: group, X: x, Y: y}
}

func testChartOptions() ChartOptions {
	opts := DefaultChartOptions()
	opts.Width = 4 * vg.Inch
	opts.Height = 2 * vg.Inch
	opts.LegendWidth = vg.Inch
	return opts
}

func TestRenderComparison_PNG(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	series := []analysis.GroupSeries{
		constantSeries("L", x, 0.5),
		constantSeries("U-Lf", x, 0.9),
	}

	var buf bytes.Buffer
	rankings, err := RenderComparison(&buf, series, testChartOptions())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngSignature))

	require.Len(t, rankings, 2)
	assert.Equal(t, "U-Lf", rankings[0].Group)
}

func TestRenderComparison_OrderIndependentOfInput(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	high := constantSeries("high", x, 0.9)
	low := constantSeries("low", x, 0.5)

	for _, in := range [][]analysis.GroupSeries{{high, low}, {low, high}} {
		var buf bytes.Buffer
		rankings, err := RenderComparison(&buf, in, testChartOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"high", "low"}, []string{rankings[0].Group, rankings[1].Group})
	}
}

func TestRenderComparison_SmoothedSVG(t *testing.T) {
	x := make([]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = float64(i) / 10
		if i%2 == 0 {
			y[i] = 0.2
		}
	}
	opts := testChartOptions()
	opts.Sigma = 2
	opts.Format = "svg"
	opts.YRange = &Range{Min: 0, Max: 1}
	opts.XRange = &Range{Min: 0, Max: 4}
	opts.Palette = "Dark2"

	var buf bytes.Buffer
	_, err := RenderComparison(&buf, []analysis.GroupSeries{{Group: "noisy", X: x, Y: y}}, opts)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "noisy")
}

func TestRenderComparison_LogX(t *testing.T) {
	s := analysis.GroupSeries{Group: "g", X: []float64{0, 10, 100, 1000}, Y: []float64{0, 0.2, 0.6, 1}}
	opts := testChartOptions()
	opts.LogX = true

	var buf bytes.Buffer
	_, err := RenderComparison(&buf, []analysis.GroupSeries{s}, opts)
	require.NoError(t, err)

	opts.XRange = &Range{Min: 0, Max: 10}
	_, err = RenderComparison(&buf, []analysis.GroupSeries{s}, opts)
	assert.ErrorIs(t, err, ErrInvalidRange)

	only := analysis.GroupSeries{Group: "g", X: []float64{-1, 0}, Y: []float64{0, 1}}
	opts.XRange = nil
	_, err = RenderComparison(&buf, []analysis.GroupSeries{only}, opts)
	assert.ErrorIs(t, err, ErrNoSeries)
}

func TestRenderComparison_Errors(t *testing.T) {
	var buf bytes.Buffer

	_, err := RenderComparison(&buf, nil, testChartOptions())
	assert.ErrorIs(t, err, ErrNoSeries)

	series := []analysis.GroupSeries{constantSeries("a", []float64{1, 2}, 1)}

	opts := testChartOptions()
	opts.Format = "bmp"
	_, err = RenderComparison(&buf, series, opts)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	opts = testChartOptions()
	opts.YRange = &Range{Min: 1, Max: 1}
	_, err = RenderComparison(&buf, series, opts)
	assert.ErrorIs(t, err, ErrInvalidRange)

	opts = testChartOptions()
	opts.Palette = "Nope"
	_, err = RenderComparison(&buf, series, opts)
	assert.ErrorIs(t, err, ErrUnknownPalette)
}

func TestSaveComparison(t *testing.T) {
	fsys := afero.NewMemMapFs()
	series := []analysis.GroupSeries{constantSeries("a", []float64{1, 2, 3}, 0.4)}

	_, err := SaveComparison(fsys, "output/de/f1/5d/comparison_graph.png", series, testChartOptions())
	require.NoError(t, err)

	content, err := afero.ReadFile(fsys, "output/de/f1/5d/comparison_graph.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, pngSignature))

	_, err = SaveComparison(fsys, "output/chart.gif", series, testChartOptions())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLegendSlots(t *testing.T) {
	slots := legendSlots(3, 100, 0, 10)
	assert.Equal(t, []vg.Length{95, 85, 75}, slots)

	// squeezed when the rows do not fit
	slots = legendSlots(4, 20, 0, 10)
	assert.Equal(t, []vg.Length{17.5, 12.5, 7.5, 2.5}, slots)

	assert.Empty(t, legendSlots(0, 100, 0, 10))
}

func TestPlanLegend(t *testing.T) {
	rankings := analysis.RankGroups([]analysis.GroupSeries{
		constantSeries("low", []float64{4}, 0.5),
		constantSeries("high", []float64{4}, 0.9),
		constantSeries("flat", []float64{4}, 0.1),
	}, 4, 1)
	colors := map[string]color.Color{"low": DefaultColors[0], "high": DefaultColors[1], "flat": DefaultColors[2]}
	anchors := map[string]vg.Point{"low": {X: 50, Y: 40}, "high": {X: 50, Y: 80}}

	entries := planLegend(rankings, colors, anchors, legendSlots(3, 100, 0, 10), 120)
	require.Len(t, entries, 3)

	assert.Equal(t, "high", entries[0].Group)
	assert.Equal(t, "low", entries[1].Group)
	assert.Greater(t, entries[0].Label.Y, entries[1].Label.Y)
	assert.Equal(t, vg.Length(120), entries[0].Label.X)
	assert.Equal(t, DefaultColors[1], entries[0].Color)
	assert.True(t, entries[0].HasAnchor)
	assert.False(t, entries[2].HasAnchor)
}

func TestTerminalPoint(t *testing.T) {
	pts := plotter.XYs{{X: 1, Y: 0.1}, {X: 2, Y: 0.2}, {X: 3, Y: 0.3}}

	x, y, ok := terminalPoint(pts, 2.5)
	require.True(t, ok)
	assert.Equal(t, 2.0, x)
	assert.Equal(t, 0.2, y)

	_, _, ok = terminalPoint(pts, 0.5)
	assert.False(t, ok)
}

func TestClampPoint(t *testing.T) {
	r := vg.Rectangle{Min: vg.Point{X: 0, Y: 0}, Max: vg.Point{X: 10, Y: 10}}
	assert.Equal(t, vg.Point{X: 10, Y: 0}, clampPoint(vg.Point{X: 15, Y: -3}, r))
	assert.Equal(t, vg.Point{X: 5, Y: 5}, clampPoint(vg.Point{X: 5, Y: 5}, r))
}

func TestCurvePoints(t *testing.T) {
	pts := curvePoints([]float64{-1, 0, 1, 2, 3}, []float64{1, 2, math.NaN(), 4}, true)
	assert.Equal(t, plotter.XYs{{X: 2, Y: 4}}, pts)

	pts = curvePoints([]float64{-1, 0}, []float64{1, 2}, false)
	assert.Len(t, pts, 2)
}
