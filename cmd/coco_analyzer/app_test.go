package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/coco_analyzer_go/internal/analysis"
	"github.com/user/coco_analyzer_go/internal/config"
	"github.com/user/coco_analyzer_go/internal/parser"
)

const runDir = "output/de/f1/5d"

// writeGroup writes trials files for group whose value column rises
// linearly to final over x = 0..4.
func writeGroup(t *testing.T, fsys afero.Fs, dir, group string, trials int, final float64) {
	t.Helper()
	var sb strings.Builder
	for x := 0; x <= 4; x++ {
		fmt.Fprintf(&sb, "%d %g\n", x, final*float64(x)/4)
	}
	for i := 0; i < trials; i++ {
		require.NoError(t, afero.WriteFile(fsys, parser.TrialPath(dir, group, i), []byte(sb.String()), 0o644))
	}
}

func smallPlotConfig(groups ...string) config.PlotConfig {
	p := config.Default().Plot
	p.Directory = runDir
	p.Groups = groups
	p.Width, p.Height, p.LegendWidth = 4, 2, 1
	return p
}

func TestAppPlot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeGroup(t, fsys, runDir, "L", 15, 15)
	writeGroup(t, fsys, runDir, "U-Lf", 15, 51)

	var out bytes.Buffer
	cfg := smallPlotConfig("L", "U-Lf", "U2-L")
	cfg.Heatmap = "charts/heat.svg"

	res, err := NewApp(fsys, &out).Plot(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(runDir, "comparison_graph.png"), res.Chart)
	for _, path := range []string{res.Chart, "charts/heat.svg"} {
		exists, err := afero.Exists(fsys, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}
	assert.Equal(t, []string{"U2-L"}, res.Results.EmptyGroups)

	require.Len(t, res.Rankings, 2)
	assert.Equal(t, "U-Lf", res.Rankings[0].Group)
	assert.Contains(t, out.String(), " 1. U-Lf")
	assert.Contains(t, out.String(), "reach(1)=unreached")
}

func TestAppPlot_FailedGroupStillDrawsOthers(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeGroup(t, fsys, runDir, "L", 15, 15)
	require.NoError(t, afero.WriteFile(fsys, parser.TrialPath(runDir, "bad", 0), []byte("1 x\n"), 0o644))

	res, err := NewApp(fsys, nil).Plot(context.Background(), smallPlotConfig("L", "bad"))
	require.ErrorIs(t, err, parser.ErrMalformedTable)
	require.NotNil(t, res)
	assert.Equal(t, []string{"bad"}, res.Results.FailedGroups)

	exists, _ := afero.Exists(fsys, res.Chart)
	assert.True(t, exists)
}

func TestAppPlot_NoData(t *testing.T) {
	fsys := afero.NewMemMapFs()

	res, err := NewApp(fsys, nil).Plot(context.Background(), smallPlotConfig("L"))
	require.ErrorIs(t, err, analysis.ErrNoData)
	assert.Nil(t, res)

	exists, _ := afero.Exists(fsys, filepath.Join(runDir, "comparison_graph.png"))
	assert.False(t, exists)
}

func TestAppReport(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeGroup(t, fsys, runDir, "L", 10, 15)

	var out bytes.Buffer
	path, err := NewApp(fsys, &out).Report(context.Background(), smallPlotConfig("L", "U-Lf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runDir, "report.pdf"), path)

	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Contains(t, out.String(), "report written to")
}

func TestAppReport_EmptyStillWritten(t *testing.T) {
	fsys := afero.NewMemMapFs()

	path, err := NewApp(fsys, nil).Report(context.Background(), smallPlotConfig("L"))
	require.ErrorIs(t, err, analysis.ErrNoData)

	exists, _ := afero.Exists(fsys, path)
	assert.True(t, exists)
}

func TestAppTrace(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := config.Default().Trace
	cfg.InputRoot = "in"
	cfg.OutputRoot = "out"
	cfg.Format = "svg"
	cfg.TrialCount = 2
	cfg.Functions = []int{1}
	cfg.Dimensions = []int{5}
	cfg.Width, cfg.Height = 4, 3

	target := analysis.TraceTarget{Function: 1, Dimension: 5, Method: "baldwinian", Variant: "nbaldwinian"}
	var sb strings.Builder
	for gen := 0; gen < 6; gen++ {
		fmt.Fprintf(&sb, "%g %g %g %g %g\n", 1.0, 0.5, 0.25, 0.1, 1e-3/float64(gen+1))
	}
	for i := 0; i < 2; i++ {
		path := parser.TrialPath(target.Directory("in"), target.Group(), i)
		require.NoError(t, afero.WriteFile(fsys, path, []byte(sb.String()), 0o644))
	}

	var out bytes.Buffer
	summary, err := NewApp(fsys, &out).Trace(context.Background(), cfg)
	require.NoError(t, err)

	want := target.OutputPath("out", "svg")
	assert.Equal(t, []string{want}, summary.Written)
	assert.Equal(t, 5, summary.Skipped, "six variants, one with data")

	data, err := afero.ReadFile(fsys, want)
	require.NoError(t, err)
	assert.Contains(t, string(data), "5D")
	assert.Contains(t, out.String(), "1 trace charts written")
}

func TestAppTrace_ShapeMismatchCollected(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := config.Default().Trace
	cfg.InputRoot = "in"
	cfg.Format = "svg"
	cfg.TrialCount = 2
	cfg.Functions = []int{2}
	cfg.Dimensions = []int{10}

	target := analysis.TraceTarget{Function: 2, Dimension: 10, Method: "lamarckian", Variant: "lamarckian"}
	dir := target.Directory("in")
	require.NoError(t, afero.WriteFile(fsys, parser.TrialPath(dir, target.Group(), 0), []byte("1 2\n3 4\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, parser.TrialPath(dir, target.Group(), 1), []byte("1 2\n"), 0o644))

	summary, err := NewApp(fsys, nil).Trace(context.Background(), cfg)
	require.ErrorIs(t, err, analysis.ErrShapeMismatch)
	assert.Empty(t, summary.Written)
}

func TestAppSubmit_DryRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := config.Default().Submit
	cfg.DryRun = true

	var out bytes.Buffer
	results, err := NewApp(fsys, &out).Submit(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, results, 16)

	exists, _ := afero.Exists(fsys, filepath.Join("sh", "temp_job_build_0.sh"))
	assert.True(t, exists)
	exists, _ = afero.Exists(fsys, filepath.Join("sh", "temp_job_execute_7.sh"))
	assert.True(t, exists)
	assert.Contains(t, out.String(), "execute#7")
	assert.Contains(t, out.String(), "written")
}

func TestAppSubmit_BadPhase(t *testing.T) {
	cfg := config.Default().Submit
	cfg.Phases = []string{"deploy"}

	_, err := NewApp(afero.NewMemMapFs(), nil).Submit(context.Background(), cfg)
	assert.Error(t, err)
}
