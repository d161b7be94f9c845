package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/user/coco_analyzer_go/internal/config"
	"github.com/user/coco_analyzer_go/internal/ctxlog"
)

const (
	configFlag    = "config"
	logFormatFlag = "log-format"

	dirFlag        = "dir"
	groupsFlag     = "groups"
	trialsFlag     = "trials"
	divisorFlag    = "divisor"
	sigmaFlag      = "sigma"
	referenceFlag  = "reference-x"
	thresholdFlag  = "threshold"
	xMinFlag       = "x-min"
	xMaxFlag       = "x-max"
	yMinFlag       = "y-min"
	yMaxFlag       = "y-max"
	logXFlag       = "log-x"
	paletteFlag    = "palette"
	titleFlag      = "title"
	outputFlag     = "output"
	heatmapFlag    = "heatmap"
	inputRootFlag  = "input-root"
	outputRootFlag = "output-root"
	formatFlag     = "format"
	functionsFlag  = "functions"
	dimensionsFlag = "dimensions"
	markersFlag    = "markers"
	workersFlag    = "workers"
	nodesFlag      = "nodes"
	phaseFlag      = "phase"
	launcherFlag   = "launcher"
	workDirFlag    = "work-dir"
	scriptDirFlag  = "script-dir"
	dryRunFlag     = "dry-run"
)

// FsFactory returns the filesystem every command reads from and writes to.
var FsFactory = func() afero.Fs { return afero.NewOsFs() }

// NewRootCmd builds the command tree. Errors are returned to the caller
// rather than exiting the process.
func NewRootCmd() *cli.Command {
	return &cli.Command{
		Name:      "coco_analyzer",
		Usage:     "aggregate COCO benchmark output, draw comparison charts and dispatch experiment jobs",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      configFlag,
				Aliases:   []string{"c"},
				Usage:     "YAML configuration file; flags override its values",
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:  logFormatFlag,
				Usage: "log output format, text or json",
				Value: "text",
			},
		},
		Before:         setupLogger,
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			{
				Name:   "plot",
				Usage:  "aggregate the groups of one directory into a comparison chart",
				Flags:  append(plotFlags(), chartOutputFlags()...),
				Action: plotAction,
			},
			{
				Name:  "report",
				Usage: "write a PDF summary with rankings, trial coverage and charts",
				Flags: append(plotFlags(), &cli.StringFlag{
					Name:    outputFlag,
					Aliases: []string{"o"},
					Usage:   "PDF path (default {dir}/report.pdf)",
				}),
				Action: reportAction,
			},
			{
				Name:   "trace",
				Usage:  "draw variable trace charts for every function, dimension, method and variant",
				Flags:  traceFlags(),
				Action: traceAction,
			},
			{
				Name:   "submit",
				Usage:  "write PBS job scripts and launch the build and execute phases",
				Flags:  submitFlags(),
				Action: submitAction,
			},
		},
	}
}

func setupLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	w := cmd.Root().ErrWriter
	switch format := cmd.String(logFormatFlag); format {
	case "text":
		return ctxlog.New(ctx, ctxlog.NewText(w)), nil
	case "json":
		return ctxlog.New(ctx, ctxlog.NewJSON(w)), nil
	default:
		return ctx, cli.Exit(fmt.Sprintf("unknown log format %q, want text or json", format), 1)
	}
}

func plotFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: dirFlag, Aliases: []string{"d"}, Usage: "directory holding {group}-{trial}.txt files"},
		&cli.StringSliceFlag{Name: groupsFlag, Aliases: []string{"g"}, Usage: "group names in legend color order"},
		&cli.IntFlag{Name: trialsFlag, Usage: "trial files per group"},
		&cli.Float64Flag{Name: divisorFlag, Usage: "normalization divisor"},
		&cli.Float64Flag{Name: sigmaFlag, Usage: "Gaussian smoothing in samples, 0 disables"},
		&cli.Float64Flag{Name: referenceFlag, Usage: "x coordinate the legend is ranked at"},
		&cli.Float64Flag{Name: thresholdFlag, Usage: "value a curve must reach to count as reached"},
		&cli.Float64Flag{Name: xMinFlag, Usage: "x axis minimum, needs --x-max"},
		&cli.Float64Flag{Name: xMaxFlag, Usage: "x axis maximum, needs --x-min"},
		&cli.Float64Flag{Name: yMinFlag, Usage: "y axis minimum, needs --y-max"},
		&cli.Float64Flag{Name: yMaxFlag, Usage: "y axis maximum, needs --y-min"},
		&cli.BoolFlag{Name: logXFlag, Usage: "logarithmic x axis"},
		&cli.StringFlag{Name: paletteFlag, Usage: "ColorBrewer qualitative palette, e.g. Set1"},
		&cli.StringFlag{Name: titleFlag, Usage: "chart title"},
	}
}

func chartOutputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: outputFlag, Aliases: []string{"o"}, Usage: "chart path, format from the extension (default {dir}/comparison_graph.png)"},
		&cli.StringFlag{Name: heatmapFlag, Usage: "also write the per-trial heatmap to this path"},
	}
}

func traceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: inputRootFlag, Usage: "root of f{n}/{dim}d/{method} trace directories"},
		&cli.StringFlag{Name: outputRootFlag, Usage: "root the charts are written under"},
		&cli.StringFlag{Name: formatFlag, Usage: "chart format: pdf, png, svg, jpg or tif"},
		&cli.IntFlag{Name: trialsFlag, Usage: "trace files per variant"},
		&cli.IntSliceFlag{Name: functionsFlag, Usage: "benchmark function numbers"},
		&cli.IntSliceFlag{Name: dimensionsFlag, Usage: "problem dimensions"},
		&cli.BoolFlag{Name: markersFlag, Usage: "mark positive values on the linear panel"},
	}
}

func submitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: workersFlag, Aliases: []string{"w"}, Usage: "jobs running at once"},
		&cli.IntSliceFlag{Name: nodesFlag, Usage: "NUMA nodes assigned round robin"},
		&cli.StringSliceFlag{Name: phaseFlag, Usage: "phases to run in order: build, execute"},
		&cli.StringSliceFlag{Name: launcherFlag, Usage: "command prefix the script path is appended to"},
		&cli.StringFlag{Name: workDirFlag, Usage: "working directory of launched jobs"},
		&cli.StringFlag{Name: scriptDirFlag, Usage: "directory job scripts are written to"},
		&cli.BoolFlag{Name: dryRunFlag, Usage: "write scripts without launching them"},
	}
}

func loadConfig(fsys afero.Fs, cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(fsys, cmd.String(configFlag))
	if err != nil {
		return config.Config{}, cli.Exit(err.Error(), 1)
	}
	return cfg, nil
}

func applyPlotFlags(cmd *cli.Command, p *config.PlotConfig) error {
	if cmd.IsSet(dirFlag) {
		p.Directory = cmd.String(dirFlag)
	}
	if cmd.IsSet(groupsFlag) {
		p.Groups = cmd.StringSlice(groupsFlag)
	}
	if cmd.IsSet(trialsFlag) {
		p.TrialCount = cmd.Int(trialsFlag)
	}
	if cmd.IsSet(divisorFlag) {
		p.Divisor = cmd.Float64(divisorFlag)
	}
	if cmd.IsSet(sigmaFlag) {
		p.Sigma = cmd.Float64(sigmaFlag)
	}
	if cmd.IsSet(referenceFlag) {
		p.ReferenceX = cmd.Float64(referenceFlag)
	}
	if cmd.IsSet(thresholdFlag) {
		p.Threshold = cmd.Float64(thresholdFlag)
	}
	if cmd.IsSet(logXFlag) {
		p.LogX = cmd.Bool(logXFlag)
	}
	if cmd.IsSet(paletteFlag) {
		p.Palette = cmd.String(paletteFlag)
	}
	if cmd.IsSet(titleFlag) {
		p.Title = cmd.String(titleFlag)
	}

	var err error
	if p.XRange, err = rangeFlags(cmd, xMinFlag, xMaxFlag, p.XRange); err != nil {
		return err
	}
	if p.YRange, err = rangeFlags(cmd, yMinFlag, yMaxFlag, p.YRange); err != nil {
		return err
	}
	return nil
}

// rangeFlags overrides current only when both bounds are given.
func rangeFlags(cmd *cli.Command, minName, maxName string, current *config.AxisRange) (*config.AxisRange, error) {
	hasMin, hasMax := cmd.IsSet(minName), cmd.IsSet(maxName)
	switch {
	case hasMin && hasMax:
		return &config.AxisRange{Min: cmd.Float64(minName), Max: cmd.Float64(maxName)}, nil
	case hasMin || hasMax:
		return current, cli.Exit(fmt.Sprintf("--%s and --%s must be given together", minName, maxName), 1)
	default:
		return current, nil
	}
}

func plotAction(ctx context.Context, cmd *cli.Command) error {
	fsys := FsFactory()
	cfg, err := loadConfig(fsys, cmd)
	if err != nil {
		return err
	}
	if err := applyPlotFlags(cmd, &cfg.Plot); err != nil {
		return err
	}
	if cmd.IsSet(outputFlag) {
		cfg.Plot.Output = cmd.String(outputFlag)
	}
	if cmd.IsSet(heatmapFlag) {
		cfg.Plot.Heatmap = cmd.String(heatmapFlag)
	}
	if err := cfg.Plot.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid plot settings: %v", err), 1)
	}

	if _, err := NewApp(fsys, cmd.Root().Writer).Plot(ctx, cfg.Plot); err != nil {
		return cli.Exit(fmt.Sprintf("plot failed: %v", err), 1)
	}
	return nil
}

func reportAction(ctx context.Context, cmd *cli.Command) error {
	fsys := FsFactory()
	cfg, err := loadConfig(fsys, cmd)
	if err != nil {
		return err
	}
	if err := applyPlotFlags(cmd, &cfg.Plot); err != nil {
		return err
	}
	if cmd.IsSet(outputFlag) {
		cfg.Plot.Report = cmd.String(outputFlag)
	}
	if err := cfg.Plot.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid report settings: %v", err), 1)
	}

	if _, err := NewApp(fsys, cmd.Root().Writer).Report(ctx, cfg.Plot); err != nil {
		return cli.Exit(fmt.Sprintf("report failed: %v", err), 1)
	}
	return nil
}

func traceAction(ctx context.Context, cmd *cli.Command) error {
	fsys := FsFactory()
	cfg, err := loadConfig(fsys, cmd)
	if err != nil {
		return err
	}
	t := &cfg.Trace
	if cmd.IsSet(inputRootFlag) {
		t.InputRoot = cmd.String(inputRootFlag)
	}
	if cmd.IsSet(outputRootFlag) {
		t.OutputRoot = cmd.String(outputRootFlag)
	}
	if cmd.IsSet(formatFlag) {
		t.Format = cmd.String(formatFlag)
	}
	if cmd.IsSet(trialsFlag) {
		t.TrialCount = cmd.Int(trialsFlag)
	}
	if cmd.IsSet(functionsFlag) {
		t.Functions = cmd.IntSlice(functionsFlag)
	}
	if cmd.IsSet(dimensionsFlag) {
		t.Dimensions = cmd.IntSlice(dimensionsFlag)
	}
	if cmd.IsSet(markersFlag) {
		t.Markers = cmd.Bool(markersFlag)
	}
	if err := t.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid trace settings: %v", err), 1)
	}

	if _, err := NewApp(fsys, cmd.Root().Writer).Trace(ctx, *t); err != nil {
		return cli.Exit(fmt.Sprintf("trace failed: %v", err), 1)
	}
	return nil
}

func submitAction(ctx context.Context, cmd *cli.Command) error {
	fsys := FsFactory()
	cfg, err := loadConfig(fsys, cmd)
	if err != nil {
		return err
	}
	s := &cfg.Submit
	if cmd.IsSet(workersFlag) {
		s.Workers = cmd.Int(workersFlag)
	}
	if cmd.IsSet(nodesFlag) {
		s.Nodes = cmd.IntSlice(nodesFlag)
	}
	if cmd.IsSet(phaseFlag) {
		s.Phases = cmd.StringSlice(phaseFlag)
	}
	if cmd.IsSet(launcherFlag) {
		s.Launcher = cmd.StringSlice(launcherFlag)
	}
	if cmd.IsSet(workDirFlag) {
		s.WorkDir = cmd.String(workDirFlag)
	}
	if cmd.IsSet(scriptDirFlag) {
		s.ScriptDir = cmd.String(scriptDirFlag)
	}
	if cmd.IsSet(dryRunFlag) {
		s.DryRun = cmd.Bool(dryRunFlag)
	}
	if err := s.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid submit settings: %v", err), 1)
	}

	if _, err := NewApp(fsys, cmd.Root().Writer).Submit(ctx, *s); err != nil {
		return cli.Exit(fmt.Sprintf("submit failed: %v", err), 1)
	}
	return nil
}
