package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/user/coco_analyzer_go/internal/analysis"
	"github.com/user/coco_analyzer_go/internal/config"
	"github.com/user/coco_analyzer_go/internal/ctxlog"
	"github.com/user/coco_analyzer_go/internal/dispatch"
	"github.com/user/coco_analyzer_go/internal/parser"
	"github.com/user/coco_analyzer_go/internal/report"
)

// App runs the pipeline behind each command. Progress goes to the context
// logger; out receives the short summary printed for the user.
type App struct {
	fs  afero.Fs
	out io.Writer
}

// NewApp creates a new App working on fsys.
func NewApp(fsys afero.Fs, out io.Writer) *App {
	if out == nil {
		out = io.Discard
	}
	return &App{fs: fsys, out: out}
}

func (a *App) sendStatus(ctx context.Context, message string, args ...any) {
	ctxlog.Info(ctx, message, args...)
}

// PlotOutcome lists what the plot pipeline produced.
type PlotOutcome struct {
	Results  *analysis.AggregationResults
	Rankings []analysis.Ranking
	Chart    string
	Heatmap  string
}

// aggregate folds the configured groups and logs their warnings. Group
// failures come back as the error alongside whatever did aggregate.
func (a *App) aggregate(ctx context.Context, cfg config.PlotConfig) (*analysis.AggregationResults, error) {
	a.sendStatus(ctx, "aggregating groups", "directory", cfg.Directory, "groups", cfg.Groups, "trials", cfg.TrialCount)
	results, err := analysis.AggregateGroups(ctx, a.fs, cfg.AggregateOptions())
	if results == nil {
		return nil, err
	}
	for _, w := range results.Warnings {
		ctxlog.Warn(ctx, w)
	}
	a.sendStatus(ctx, "aggregation complete", "series", results.Groups(), "empty", results.EmptyGroups, "failed", results.FailedGroups)
	for _, s := range results.Series {
		if x, y, ok := s.Terminal(math.Inf(1)); ok {
			ctxlog.Debug(ctx, "series aggregated", "group", s.Group, "points", s.Len(), "lastX", x, "lastY", y)
		}
	}
	return results, err
}

// Plot writes the comparison chart, and the trial heatmap when configured.
// When some groups fail the others are still drawn and the group error is returned.
func (a *App) Plot(ctx context.Context, cfg config.PlotConfig) (*PlotOutcome, error) {
	results, aggErr := a.aggregate(ctx, cfg)
	if results == nil || len(results.Series) == 0 {
		if aggErr == nil {
			aggErr = analysis.ErrNoData
		}
		return nil, aggErr
	}
	if aggErr != nil {
		ctxlog.Error(ctx, "some groups failed, plotting the rest", "failed", results.FailedGroups, "error", aggErr)
	}

	out := &PlotOutcome{Results: results, Chart: cfg.OutputPath()}
	a.sendStatus(ctx, "rendering comparison chart", "path", out.Chart, "sigma", cfg.Sigma)
	rankings, err := report.SaveComparison(a.fs, out.Chart, results.Series, cfg.ChartOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to save comparison chart: %w", err)
	}
	out.Rankings = rankings
	fmt.Fprintf(a.out, "comparison chart written to %s\n", out.Chart)
	a.printRankings(results, rankings, cfg)

	if cfg.Heatmap != "" {
		a.sendStatus(ctx, "rendering trial heatmap", "path", cfg.Heatmap)
		if err := report.SaveTrialHeatmap(a.fs, cfg.Heatmap, results.Series, report.DefaultHeatmapOptions()); err != nil {
			return out, fmt.Errorf("failed to save trial heatmap: %w", err)
		}
		out.Heatmap = cfg.Heatmap
		fmt.Fprintf(a.out, "trial heatmap written to %s\n", cfg.Heatmap)
	}

	return out, aggErr
}

func (a *App) printRankings(results *analysis.AggregationResults, rankings []analysis.Ranking, cfg config.PlotConfig) {
	for _, r := range rankings {
		reach := "unreached"
		if !analysis.IsUnreached(r.ReachX) {
			reach = strconv.FormatFloat(r.ReachX, 'g', 4, 64)
		}
		loaded := 0
		if s, ok := results.Lookup(r.Group); ok {
			loaded = len(s.Loaded)
		}
		fmt.Fprintf(a.out, "%2d. %-16s value@%g=%.3f  reach(%g)=%s  trials=%d/%d\n",
			r.Rank+1, r.Group, cfg.ReferenceX, r.ValueAtReference, cfg.Threshold, reach, loaded, cfg.TrialCount)
	}
}

// Report builds the PDF summary. Plot failures are logged and leave their
// page empty; an empty aggregation still produces a report listing the
// omitted groups, and the aggregation error is returned afterwards.
func (a *App) Report(ctx context.Context, cfg config.PlotConfig) (string, error) {
	results, aggErr := a.aggregate(ctx, cfg)
	if results == nil {
		return "", aggErr
	}

	images := make(map[string][]byte)
	var rankings []analysis.Ranking
	if len(results.Series) > 0 {
		a.sendStatus(ctx, "generating plots")

		chartOpts := cfg.ChartOptions()
		chartOpts.Format = "png"
		var buf bytes.Buffer
		r, err := report.RenderComparison(&buf, results.Series, chartOpts)
		if err != nil {
			ctxlog.Error(ctx, "error generating comparison plot", "error", err)
		} else {
			images[report.ImageComparison] = buf.Bytes()
			rankings = r
		}

		var hbuf bytes.Buffer
		if err := report.RenderTrialHeatmap(&hbuf, results.Series, report.DefaultHeatmapOptions()); err != nil {
			ctxlog.Error(ctx, "error generating heatmap", "error", err)
		} else {
			images[report.ImageHeatmap] = hbuf.Bytes()
		}

		if rankings == nil {
			rankings = analysis.RankGroups(results.Series, cfg.ReferenceX, cfg.Threshold)
		}
		a.sendStatus(ctx, "plot generation complete", "images", len(images))
	}

	path := cfg.ReportPath()
	a.sendStatus(ctx, "generating PDF", "path", path)
	err := report.SavePDFReport(a.fs, path, report.ReportData{
		Directory:  cfg.Directory,
		TrialCount: cfg.TrialCount,
		Divisor:    cfg.Divisor,
		ReferenceX: cfg.ReferenceX,
		Threshold:  cfg.Threshold,
		Sigma:      cfg.Sigma,
		Results:    results,
		Rankings:   rankings,
		Images:     images,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate PDF report: %w", err)
	}
	fmt.Fprintf(a.out, "report written to %s\n", path)
	return path, aggErr
}

// TraceSummary counts the outcome of a trace sweep.
type TraceSummary struct {
	Written []string
	Skipped int // targets without any trace file
}

// Trace renders one variable trace chart per sweep target that has data.
// Failing targets are collected and do not stop the sweep.
func (a *App) Trace(ctx context.Context, cfg config.TraceConfig) (TraceSummary, error) {
	var summary TraceSummary
	targets := analysis.SweepTargets(cfg.Functions, cfg.Dimensions, cfg.TraceMethods())
	a.sendStatus(ctx, "starting trace sweep", "targets", len(targets), "input", cfg.InputRoot, "output", cfg.OutputRoot)

	var errs *multierror.Error
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dir := t.Directory(cfg.InputRoot)
		found, err := a.hasTrialFiles(dir, t.Group(), cfg.TrialCount)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !found {
			ctxlog.Debug(ctx, "no trace data, skipping", "directory", dir, "group", t.Group())
			summary.Skipped++
			continue
		}

		res, err := analysis.AggregateTrace(ctx, a.fs, analysis.TraceOptions{
			Directory:  dir,
			Group:      t.Group(),
			TrialCount: cfg.TrialCount,
			Divisor:    cfg.TraceDivisor(),
		})
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		path := t.OutputPath(cfg.OutputRoot, cfg.Format)
		if err := report.SaveTrace(a.fs, path, res.Data, cfg.TraceOptions(t)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		a.sendStatus(ctx, "trace chart written", "path", path, "trials", len(res.Loaded))
		summary.Written = append(summary.Written, path)
	}

	fmt.Fprintf(a.out, "%d trace charts written, %d targets without data\n", len(summary.Written), summary.Skipped)
	return summary, errs.ErrorOrNil()
}

// hasTrialFiles reports whether any trial file of group exists, so empty
// sweep targets are skipped without a warning per missing file.
func (a *App) hasTrialFiles(dir, group string, trials int) (bool, error) {
	for i := 0; i < trials; i++ {
		ok, err := parser.TrialExists(a.fs, parser.TrialPath(dir, group, i))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Submit runs the configured phases on the dispatcher pool.
func (a *App) Submit(ctx context.Context, cfg config.SubmitConfig) ([]dispatch.Result, error) {
	phases, err := cfg.PhaseList()
	if err != nil {
		return nil, err
	}
	d, err := dispatch.New(a.fs, cfg.DispatchOptions())
	if err != nil {
		return nil, err
	}

	results, err := d.RunPhases(ctx, cfg.JobOptions(), cfg.Nodes, phases)
	for _, r := range results {
		fmt.Fprintf(a.out, "%-12s node=%d %-9s %s\n", r.Job.Label(), r.Job.Node, resultState(r), r.Script)
	}
	return results, err
}

func resultState(r dispatch.Result) string {
	switch {
	case errors.Is(r.Error, dispatch.ErrJobCancelled):
		return "cancelled"
	case r.Error != nil:
		return "failed"
	case r.Skipped:
		return "written"
	default:
		return "ok"
	}
}
