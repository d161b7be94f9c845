// Package config loads the YAML settings shared by every command. Values not
// present in the file keep the defaults of Default.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gonum.org/v1/plot/vg"

	"github.com/user/coco_analyzer_go/internal/analysis"
	"github.com/user/coco_analyzer_go/internal/dispatch"
	"github.com/user/coco_analyzer_go/internal/report"
)

var (
	ErrReadConfig    = errors.New("failed to read config file")
	ErrInvalidYaml   = errors.New("invalid YAML")
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	ComparisonFileName = "comparison_graph.png"
	ReportFileName     = "report.pdf"
)

// Config is the root of the YAML file.
type Config struct {
	Plot   PlotConfig   `yaml:"plot"`
	Trace  TraceConfig  `yaml:"trace"`
	Submit SubmitConfig `yaml:"submit"`
}

// AxisRange is a fixed axis interval.
type AxisRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// PlotConfig drives the plot and report commands.
type PlotConfig struct {
	Directory   string     `yaml:"directory"`
	Groups      []string   `yaml:"groups"`
	TrialCount  int        `yaml:"trial_count"`
	Divisor     float64    `yaml:"divisor"`
	XColumn     int        `yaml:"x_column"`
	ValueColumn int        `yaml:"value_column"`
	Sigma       float64    `yaml:"sigma"`
	ReferenceX  float64    `yaml:"reference_x"`
	Threshold   float64    `yaml:"threshold"`
	XRange      *AxisRange `yaml:"x_range"`
	YRange      *AxisRange `yaml:"y_range"`
	LogX        bool       `yaml:"log_x"`
	Palette     string     `yaml:"palette"`
	Title       string     `yaml:"title"`
	XLabel      string     `yaml:"x_label"`
	YLabel      string     `yaml:"y_label"`
	Width       float64    `yaml:"width"` // inches
	Height      float64    `yaml:"height"`
	LegendWidth float64    `yaml:"legend_width"`
	Output      string     `yaml:"output"`  // empty means {directory}/comparison_graph.png
	Heatmap     string     `yaml:"heatmap"` // empty skips the heatmap file
	Report      string     `yaml:"report"`  // empty means {directory}/report.pdf
}

// TraceMethodConfig is one method of the trace sweep.
type TraceMethodConfig struct {
	Name     string          `yaml:"name"`
	Variants []string        `yaml:"variants"`
	XMax     map[int]float64 `yaml:"xmax"` // keyed by dimension
}

// TraceConfig drives the trace command.
type TraceConfig struct {
	InputRoot  string              `yaml:"input_root"`
	OutputRoot string              `yaml:"output_root"`
	Format     string              `yaml:"format"`
	TrialCount int                 `yaml:"trial_count"`
	Divisor    float64             `yaml:"divisor"` // 0 divides by trial_count
	Functions  []int               `yaml:"functions"`
	Dimensions []int               `yaml:"dimensions"`
	Methods    []TraceMethodConfig `yaml:"methods"`
	Markers    bool                `yaml:"markers"`
	YMax       float64             `yaml:"y_max"`
	Width      float64             `yaml:"width"`
	Height     float64             `yaml:"height"`
}

// JobConfig is one row of the experiment matrix.
type JobConfig struct {
	Algorithm int `yaml:"algorithm"`
	Encoding  int `yaml:"encoding"`
	Approach  int `yaml:"approach"`
}

// SubmitConfig drives the submit command.
type SubmitConfig struct {
	Workers   int         `yaml:"workers"`
	ScriptDir string      `yaml:"script_dir"`
	LogDir    string      `yaml:"log_dir"`
	JobName   string      `yaml:"job_name"`
	Resources string      `yaml:"resources"`
	Launcher  []string    `yaml:"launcher"`
	WorkDir   string      `yaml:"work_dir"`
	Nodes     []int       `yaml:"nodes"`
	Phases    []string    `yaml:"phases"`
	Jobs      []JobConfig `yaml:"jobs"`
	DryRun    bool        `yaml:"dry_run"`
}

// Default returns the settings the COCO experiments were analysed with.
func Default() Config {
	chart := report.DefaultChartOptions()
	disp := dispatch.DefaultOptions()

	jobs := make([]JobConfig, len(dispatch.DefaultJobOptions))
	for i, o := range dispatch.DefaultJobOptions {
		jobs[i] = JobConfig{Algorithm: o.Algorithm, Encoding: o.Encoding, Approach: o.Approach}
	}

	return Config{
		Plot: PlotConfig{
			Directory:   "output/de/f1/5d",
			Groups:      []string{"L", "U-Lf", "U-Lm", "U-Lb", "U2-L"},
			TrialCount:  analysis.DefaultTrialCount,
			Divisor:     analysis.DefaultNormalizationDivisor,
			XColumn:     0,
			ValueColumn: 1,
			ReferenceX:  analysis.DefaultReferenceX,
			Threshold:   analysis.DefaultReachThreshold,
			Title:       chart.Title,
			XLabel:      chart.XLabel,
			YLabel:      chart.YLabel,
			Width:       float64(chart.Width / vg.Inch),
			Height:      float64(chart.Height / vg.Inch),
			LegendWidth: float64(chart.LegendWidth / vg.Inch),
		},
		Trace: TraceConfig{
			InputRoot:  "output/0",
			OutputRoot: "plot1",
			Format:     "pdf",
			TrialCount: analysis.DefaultTrialCount,
			Functions:  []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24},
			Dimensions: []int{5, 10, 20, 40, 80, 160},
			Methods: []TraceMethodConfig{
				{
					Name:     "baldwinian",
					Variants: []string{"baldwinian", "nbaldwinian"},
					XMax:     map[int]float64{5: 20, 10: 20, 20: 30, 40: 35, 80: 40, 160: 50},
				},
				{
					Name:     "lamarckian",
					Variants: []string{"lamarckian", "nlamarckian_best", "nlamarckian_lower", "nlamarckian_upper"},
					XMax:     map[int]float64{5: 20, 10: 20, 20: 30, 40: 40, 80: 50, 160: 60},
				},
			},
			Width:  12,
			Height: 8,
		},
		Submit: SubmitConfig{
			Workers:   disp.Workers,
			ScriptDir: disp.ScriptDir,
			LogDir:    disp.LogDir,
			JobName:   disp.JobName,
			Resources: disp.Resources,
			Launcher:  disp.Launcher,
			Nodes:     []int{0, 1},
			Phases:    []string{string(dispatch.PhaseBuild), string(dispatch.PhaseExecute)},
			Jobs:      jobs,
		},
	}
}

// Parse decodes data over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidYaml, err)
	}
	return cfg, nil
}

// Load reads path from fsys. An empty path returns the defaults.
func Load(fsys afero.Fs, path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrReadConfig, path, err)
	}
	return Parse(data)
}

// Validate checks every section.
func (c Config) Validate() error {
	var err *multierror.Error
	err = multierror.Append(err, c.Plot.Validate(), c.Trace.Validate(), c.Submit.Validate())
	return err.ErrorOrNil()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// OutputPath is the comparison chart destination.
func (p PlotConfig) OutputPath() string {
	if p.Output != "" {
		return p.Output
	}
	return filepath.Join(p.Directory, ComparisonFileName)
}

// ReportPath is the PDF report destination.
func (p PlotConfig) ReportPath() string {
	if p.Report != "" {
		return p.Report
	}
	return filepath.Join(p.Directory, ReportFileName)
}

func (p PlotConfig) AggregateOptions() analysis.AggregateOptions {
	return analysis.AggregateOptions{
		Directory:            p.Directory,
		Groups:               p.Groups,
		TrialCount:           p.TrialCount,
		NormalizationDivisor: p.Divisor,
		XColumn:              p.XColumn,
		ValueColumn:          p.ValueColumn,
	}
}

func (p PlotConfig) ChartOptions() report.ChartOptions {
	opts := report.DefaultChartOptions()
	opts.Title = p.Title
	opts.XLabel = p.XLabel
	opts.YLabel = p.YLabel
	opts.LogX = p.LogX
	opts.Sigma = p.Sigma
	opts.ReferenceX = p.ReferenceX
	opts.Threshold = p.Threshold
	opts.Palette = p.Palette
	opts.Width = vg.Length(p.Width) * vg.Inch
	opts.Height = vg.Length(p.Height) * vg.Inch
	opts.LegendWidth = vg.Length(p.LegendWidth) * vg.Inch
	if p.XRange != nil {
		opts.XRange = &report.Range{Min: p.XRange.Min, Max: p.XRange.Max}
	}
	if p.YRange != nil {
		opts.YRange = &report.Range{Min: p.YRange.Min, Max: p.YRange.Max}
	}
	return opts
}

// Validate reports every problem of the plot section at once.
func (p PlotConfig) Validate() error {
	var err *multierror.Error
	if strings.TrimSpace(p.Directory) == "" {
		err = multierror.Append(err, invalid("plot.directory is empty"))
	}
	err = multierror.Append(err, p.AggregateOptions().Validate())

	if p.Sigma < 0 {
		err = multierror.Append(err, invalid("plot.sigma must not be negative, got %g", p.Sigma))
	}
	for name, r := range map[string]*AxisRange{"x_range": p.XRange, "y_range": p.YRange} {
		if r != nil && !(r.Min < r.Max) {
			err = multierror.Append(err, invalid("plot.%s min %g must be below max %g", name, r.Min, r.Max))
		}
	}
	if p.LogX && p.XRange != nil && p.XRange.Min <= 0 {
		err = multierror.Append(err, invalid("plot.x_range min must be positive with log_x"))
	}
	if p.Width <= 0 || p.Height <= 0 {
		err = multierror.Append(err, invalid("plot width and height must be positive"))
	}
	if p.LegendWidth < 0 || p.LegendWidth >= p.Width {
		err = multierror.Append(err, invalid("plot.legend_width must be in [0, width), got %g", p.LegendWidth))
	}
	if p.Palette != "" {
		if _, perr := report.AssignColors(nil, p.Palette); perr != nil {
			err = multierror.Append(err, perr)
		}
	}
	if _, ferr := report.FormatFromPath(p.OutputPath()); ferr != nil {
		err = multierror.Append(err, ferr)
	}
	if p.Heatmap != "" {
		if _, ferr := report.FormatFromPath(p.Heatmap); ferr != nil {
			err = multierror.Append(err, ferr)
		}
	}
	if !strings.EqualFold(filepath.Ext(p.ReportPath()), ".pdf") {
		err = multierror.Append(err, invalid("plot.report must be a .pdf file, got %q", p.ReportPath()))
	}
	return err.ErrorOrNil()
}

// TraceMethods converts the method table.
func (t TraceConfig) TraceMethods() []analysis.TraceMethod {
	methods := make([]analysis.TraceMethod, len(t.Methods))
	for i, m := range t.Methods {
		methods[i] = analysis.TraceMethod{Name: m.Name, Variants: m.Variants, XMax: m.XMax}
	}
	return methods
}

// TraceDivisor falls back to the trial count.
func (t TraceConfig) TraceDivisor() float64 {
	if t.Divisor != 0 {
		return t.Divisor
	}
	return float64(t.TrialCount)
}

// TraceOptions is the chart setup for one target.
func (t TraceConfig) TraceOptions(target analysis.TraceTarget) report.TraceOptions {
	opts := report.DefaultTraceOptions()
	opts.Title = target.Title()
	opts.XMax = target.XMax
	opts.YMax = t.YMax
	opts.Markers = t.Markers
	opts.Width = vg.Length(t.Width) * vg.Inch
	opts.Height = vg.Length(t.Height) * vg.Inch
	opts.Format = t.Format
	return opts
}

func (t TraceConfig) Validate() error {
	var err *multierror.Error
	if strings.TrimSpace(t.InputRoot) == "" {
		err = multierror.Append(err, invalid("trace.input_root is empty"))
	}
	if strings.TrimSpace(t.OutputRoot) == "" {
		err = multierror.Append(err, invalid("trace.output_root is empty"))
	}
	if _, ferr := report.CheckFormat(t.Format); ferr != nil {
		err = multierror.Append(err, ferr)
	}
	if t.TrialCount <= 0 {
		err = multierror.Append(err, invalid("trace.trial_count must be positive, got %d", t.TrialCount))
	}
	if t.Divisor < 0 {
		err = multierror.Append(err, invalid("trace.divisor must not be negative, got %g", t.Divisor))
	}
	if len(t.Functions) == 0 || len(t.Dimensions) == 0 {
		err = multierror.Append(err, invalid("trace needs at least one function and one dimension"))
	}
	for _, d := range t.Dimensions {
		if d <= 0 {
			err = multierror.Append(err, invalid("trace dimension must be positive, got %d", d))
		}
	}
	if len(t.Methods) == 0 {
		err = multierror.Append(err, invalid("trace.methods is empty"))
	}
	for i, m := range t.Methods {
		if strings.TrimSpace(m.Name) == "" {
			err = multierror.Append(err, invalid("trace method %d has no name", i))
		}
		if len(m.Variants) == 0 {
			err = multierror.Append(err, invalid("trace method %q has no variants", m.Name))
		}
	}
	if t.Width <= 0 || t.Height <= 0 {
		err = multierror.Append(err, invalid("trace width and height must be positive"))
	}
	return err.ErrorOrNil()
}

func (s SubmitConfig) DispatchOptions() dispatch.Options {
	return dispatch.Options{
		Workers:   s.Workers,
		ScriptDir: s.ScriptDir,
		LogDir:    s.LogDir,
		JobName:   s.JobName,
		Resources: s.Resources,
		Launcher:  s.Launcher,
		WorkDir:   s.WorkDir,
		DryRun:    s.DryRun,
	}
}

func (s SubmitConfig) JobOptions() []dispatch.JobOption {
	opts := make([]dispatch.JobOption, len(s.Jobs))
	for i, j := range s.Jobs {
		opts[i] = dispatch.JobOption{Algorithm: j.Algorithm, Encoding: j.Encoding, Approach: j.Approach}
	}
	return opts
}

// PhaseList parses the configured phases in order.
func (s SubmitConfig) PhaseList() ([]dispatch.Phase, error) {
	phases := make([]dispatch.Phase, 0, len(s.Phases))
	for _, name := range s.Phases {
		p, err := dispatch.ParsePhase(name)
		if err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, nil
}

func (s SubmitConfig) Validate() error {
	var err *multierror.Error
	err = multierror.Append(err, s.DispatchOptions().Validate())
	if len(s.Phases) == 0 {
		err = multierror.Append(err, invalid("submit.phases is empty"))
	}
	if _, perr := s.PhaseList(); perr != nil {
		err = multierror.Append(err, perr)
	}
	if len(s.Jobs) == 0 {
		err = multierror.Append(err, invalid("submit.jobs is empty"))
	}
	for _, n := range s.Nodes {
		if n < 0 {
			err = multierror.Append(err, invalid("submit node must not be negative, got %d", n))
		}
	}
	return err.ErrorOrNil()
}
