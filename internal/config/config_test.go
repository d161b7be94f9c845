package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/user/coco_analyzer_go/internal/analysis"
	"github.com/user/coco_analyzer_go/internal/dispatch"
	"github.com/user/coco_analyzer_go/internal/report"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15, cfg.Plot.TrialCount)
	assert.Equal(t, 765.0, cfg.Plot.Divisor)
	assert.Equal(t, 4.0, cfg.Plot.ReferenceX)
	assert.Equal(t, 1.0, cfg.Plot.Threshold)
	assert.Equal(t, 8, cfg.Submit.Workers)
	assert.Equal(t, []int{0, 1}, cfg.Submit.Nodes)
	assert.Len(t, cfg.Submit.Jobs, 8)
	assert.Len(t, cfg.Trace.Functions, 24)
	assert.Equal(t, filepath.Join("output/de/f1/5d", "comparison_graph.png"), cfg.Plot.OutputPath())
	assert.Equal(t, filepath.Join("output/de/f1/5d", "report.pdf"), cfg.Plot.ReportPath())
}

func TestParse_OverridesKeepDefaults(t *testing.T) {
	data := []byte(`
plot:
  directory: runs/f3/10d
  groups: [A, B]
  sigma: 1.5
  x_range:
    min: 0
    max: 50
  palette: Set1
trace:
  functions: [1, 2]
  methods:
    - name: lamarckian
      variants: [lamarckian]
      xmax:
        10: 25
submit:
  workers: 2
  dry_run: true
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "runs/f3/10d", cfg.Plot.Directory)
	assert.Equal(t, []string{"A", "B"}, cfg.Plot.Groups)
	assert.Equal(t, 1.5, cfg.Plot.Sigma)
	require.NotNil(t, cfg.Plot.XRange)
	assert.Equal(t, 50.0, cfg.Plot.XRange.Max)
	assert.Nil(t, cfg.Plot.YRange)
	assert.Equal(t, 765.0, cfg.Plot.Divisor, "untouched keys keep defaults")
	assert.Equal(t, "benchmarking", cfg.Plot.Title)

	assert.Equal(t, []int{1, 2}, cfg.Trace.Functions)
	require.Len(t, cfg.Trace.Methods, 1)
	assert.Equal(t, 25.0, cfg.Trace.Methods[0].XMax[10])
	assert.Equal(t, "output/0", cfg.Trace.InputRoot)

	assert.Equal(t, 2, cfg.Submit.Workers)
	assert.True(t, cfg.Submit.DryRun)
	assert.Equal(t, "MymixintDEJob", cfg.Submit.JobName)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "plot:\n  colour: red\n"},
		{"wrong type", "plot:\n  trial_count: many\n"},
		{"broken yaml", "plot: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidYaml)
		})
	}
}

func TestLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "cfg.yaml", []byte("plot:\n  groups: [X]\n"), 0o644))

	cfg, err := Load(fsys, "cfg.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, cfg.Plot.Groups)

	cfg, err = Load(fsys, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(fsys, "missing.yaml")
	assert.ErrorIs(t, err, ErrReadConfig)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Plot.Groups = nil
	cfg.Plot.Sigma = -1
	cfg.Plot.YRange = &AxisRange{Min: 2, Max: 1}
	cfg.Plot.Output = "chart.bmp"
	cfg.Trace.Format = "gif"
	cfg.Trace.Methods = nil
	cfg.Submit.Workers = 0
	cfg.Submit.Phases = []string{"deploy"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, analysis.ErrInvalidOptions)
	assert.ErrorIs(t, err, report.ErrUnsupportedFormat)
	assert.ErrorIs(t, err, dispatch.ErrInvalidOptions)

	msg := err.Error()
	for _, want := range []string{"no groups", "sigma", "y_range", "trace.methods", "workers", "deploy"} {
		assert.Contains(t, msg, want)
	}
}

func TestPlotValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*PlotConfig)
		want   string
	}{
		{"log x with zero min", func(p *PlotConfig) { p.LogX = true; p.XRange = &AxisRange{Min: 0, Max: 10} }, "log_x"},
		{"legend wider than chart", func(p *PlotConfig) { p.LegendWidth = p.Width }, "legend_width"},
		{"unknown palette", func(p *PlotConfig) { p.Palette = "Rainbow" }, "unknown palette"},
		{"report not pdf", func(p *PlotConfig) { p.Report = "out/report.png" }, "plot.report"},
		{"bad heatmap ext", func(p *PlotConfig) { p.Heatmap = "heat.gif" }, "gif"},
		{"empty directory", func(p *PlotConfig) { p.Directory = " " }, "plot.directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default().Plot
			tt.modify(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChartOptions(t *testing.T) {
	p := Default().Plot
	p.Sigma = 2
	p.LogX = true
	p.XRange = &AxisRange{Min: 1, Max: 100}
	p.Width = 10

	opts := p.ChartOptions()
	assert.Equal(t, 2.0, opts.Sigma)
	assert.True(t, opts.LogX)
	assert.Equal(t, &report.Range{Min: 1, Max: 100}, opts.XRange)
	assert.Nil(t, opts.YRange)
	assert.Equal(t, 10*vg.Inch, opts.Width)
	assert.Equal(t, report.DefaultChartOptions().LegendWidth, opts.LegendWidth)

	agg := p.AggregateOptions()
	assert.Equal(t, p.Groups, agg.Groups)
	assert.Equal(t, 765.0, agg.NormalizationDivisor)
}

func TestTraceConversions(t *testing.T) {
	tr := Default().Trace
	assert.Equal(t, 15.0, tr.TraceDivisor())
	tr.Divisor = 3
	assert.Equal(t, 3.0, tr.TraceDivisor())

	methods := tr.TraceMethods()
	require.Len(t, methods, 2)
	assert.Equal(t, 35.0, methods[0].XMax[40])
	assert.Equal(t, 60.0, methods[1].XMax[160])

	target := analysis.TraceTarget{Function: 1, Dimension: 20, Method: "baldwinian", Variant: "baldwinian", XMax: 30}
	opts := tr.TraceOptions(target)
	assert.Equal(t, "20D", opts.Title)
	assert.Equal(t, 30.0, opts.XMax)
	assert.Equal(t, "pdf", opts.Format)
	assert.Equal(t, 8*vg.Inch, opts.Height)
}

func TestSubmitConversions(t *testing.T) {
	s := Default().Submit
	s.WorkDir = "/tmp/run"

	opts := s.DispatchOptions()
	assert.Equal(t, "/tmp/run", opts.WorkDir)
	assert.Equal(t, []string{"nohup"}, opts.Launcher)
	assert.Equal(t, dispatch.DefaultJobOptions, s.JobOptions())

	phases, err := s.PhaseList()
	require.NoError(t, err)
	assert.Equal(t, []dispatch.Phase{dispatch.PhaseBuild, dispatch.PhaseExecute}, phases)
}
