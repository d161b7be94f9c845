package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/floats"

	"github.com/user/coco_analyzer_go/internal/ctxlog"
	"github.com/user/coco_analyzer_go/internal/parser"
)

const (
	// DefaultTrialCount is the number of trials run per group.
	DefaultTrialCount = 15
	// DefaultNormalizationDivisor is the number of function/dimension/instance
	// combinations summed into the value column over all trials.
	DefaultNormalizationDivisor = 765
)

var (
	// ErrNoTrialData is returned when none of a group's trial files exist.
	ErrNoTrialData = errors.New("no trial data for group")
	// ErrNoData is returned when no requested group has any trial data.
	ErrNoData = errors.New("no trial data for any group")
	// ErrRowCountMismatch is returned when a trial has a different row count than the first loaded trial.
	ErrRowCountMismatch = errors.New("trial row count differs from first loaded trial")
	// ErrInvalidOptions is returned for unusable aggregation settings.
	ErrInvalidOptions = errors.New("invalid aggregation options")
)

// AggregateOptions selects which files are read and how they are combined.
type AggregateOptions struct {
	Directory            string
	Groups               []string
	TrialCount           int
	NormalizationDivisor float64
	XColumn              int
	ValueColumn          int
}

// DefaultAggregateOptions returns the settings used for the COCO runs: 15 trials
// normalized by 765, x in column 0 and the hit count in column 1.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{
		TrialCount:           DefaultTrialCount,
		NormalizationDivisor: DefaultNormalizationDivisor,
		XColumn:              parser.DefaultXColumn,
		ValueColumn:          parser.DefaultValueColumn,
	}
}

// Validate checks the options without touching the filesystem.
func (o AggregateOptions) Validate() error {
	var err *multierror.Error
	if len(o.Groups) == 0 {
		err = multierror.Append(err, fmt.Errorf("%w: no groups given", ErrInvalidOptions))
	}
	for i, g := range o.Groups {
		if strings.TrimSpace(g) == "" {
			err = multierror.Append(err, fmt.Errorf("%w: group %d has an empty name", ErrInvalidOptions, i))
		}
	}
	if o.TrialCount <= 0 {
		err = multierror.Append(err, fmt.Errorf("%w: trial count must be positive, got %d", ErrInvalidOptions, o.TrialCount))
	}
	if o.NormalizationDivisor == 0 || math.IsNaN(o.NormalizationDivisor) || math.IsInf(o.NormalizationDivisor, 0) {
		err = multierror.Append(err, fmt.Errorf("%w: normalization divisor must be finite and non-zero", ErrInvalidOptions))
	}
	if o.XColumn < 0 || o.ValueColumn < 0 {
		err = multierror.Append(err, fmt.Errorf("%w: column indices must not be negative", ErrInvalidOptions))
	}
	return err.ErrorOrNil()
}

// UniqueGroups drops repeated names, keeping the first occurrence.
func UniqueGroups(groups []string) []string {
	seen := make(map[string]bool, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

// accumulator is the fold state of one group. add never modifies its receiver.
type accumulator struct {
	x      []float64
	sum    []float64
	finals []float64
	loaded []int
}

func newAccumulator(trials int) accumulator {
	finals := make([]float64, trials)
	for i := range finals {
		finals[i] = math.NaN()
	}
	return accumulator{finals: finals}
}

func (a accumulator) add(index int, table *parser.TrialTable, xCol, valueCol int) (accumulator, error) {
	x, err := table.Column(xCol)
	if err != nil {
		return a, err
	}
	y, err := table.Column(valueCol)
	if err != nil {
		return a, err
	}

	next := accumulator{
		x:      x,
		finals: slices.Clone(a.finals),
		loaded: append(slices.Clone(a.loaded), index),
	}

	if a.sum == nil {
		next.sum = y
	} else {
		if len(y) != len(a.sum) {
			return a, fmt.Errorf("%w: %s has %d rows, expected %d", ErrRowCountMismatch, table.Path, len(y), len(a.sum))
		}
		next.sum = slices.Clone(a.sum)
		floats.Add(next.sum, y)
	}
	next.finals[index] = y[len(y)-1]

	return next, nil
}

// AggregateGroup folds the trial files of one group into a normalized series.
// Missing trial files are skipped with a warning; the divisor is applied
// regardless of how many trials were found.
func AggregateGroup(ctx context.Context, fsys afero.Fs, opts AggregateOptions, group string) (GroupSeries, error) {
	logger := ctxlog.Logger(ctx).With("group", group)

	acc := newAccumulator(opts.TrialCount)
	var missing []int

	for i := 0; i < opts.TrialCount; i++ {
		path := parser.TrialPath(opts.Directory, group, i)

		table, err := parser.LoadTrialTable(fsys, path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("trial file not found, skipping", "path", path)
			missing = append(missing, i)
			continue
		}
		if err != nil {
			return GroupSeries{}, fmt.Errorf("group %q: %w", group, err)
		}

		acc, err = acc.add(i, table, opts.XColumn, opts.ValueColumn)
		if err != nil {
			return GroupSeries{}, fmt.Errorf("group %q: %w", group, err)
		}
		logger.Debug("trial folded", "trial", i, "rows", table.Rows())
	}

	if len(acc.loaded) == 0 {
		return GroupSeries{Group: group, Missing: missing, TrialFinals: acc.finals},
			fmt.Errorf("%w: %q", ErrNoTrialData, group)
	}

	y := make([]float64, len(acc.sum))
	for i, s := range acc.sum {
		y[i] = s / opts.NormalizationDivisor
	}

	return GroupSeries{
		Group:       group,
		X:           acc.x,
		Y:           y,
		Loaded:      acc.loaded,
		Missing:     missing,
		TrialFinals: acc.finals,
	}, nil
}

// AggregateGroups aggregates every requested group in order.
//
// Groups without any trial file are left out of the series and listed in
// EmptyGroups. Groups whose files cannot be parsed are listed in FailedGroups
// and their errors are returned together; the results still carry the groups
// that succeeded. ErrNoData is returned when nothing could be aggregated.
func AggregateGroups(ctx context.Context, fsys afero.Fs, opts AggregateOptions) (*AggregationResults, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	results := NewAggregationResults()
	var groupErrs *multierror.Error

	for _, group := range UniqueGroups(opts.Groups) {
		series, err := AggregateGroup(ctx, fsys, opts, group)
		switch {
		case errors.Is(err, ErrNoTrialData):
			results.EmptyGroups = append(results.EmptyGroups, group)
			results.Warnings = append(results.Warnings, fmt.Sprintf("Group '%s': no trial files found in %s, omitted.", group, opts.Directory))
			ctxlog.Warn(ctx, "group has no trial data, omitted", "group", group)
		case err != nil:
			results.FailedGroups = append(results.FailedGroups, group)
			groupErrs = multierror.Append(groupErrs, err)
		default:
			if len(series.Missing) > 0 {
				results.Warnings = append(results.Warnings, fmt.Sprintf("Group '%s': %d of %d trials missing %v.", group, len(series.Missing), opts.TrialCount, series.Missing))
			}
			results.Series = append(results.Series, series)
		}
	}

	if err := groupErrs.ErrorOrNil(); err != nil {
		return results, err
	}
	if len(results.Series) == 0 {
		return results, ErrNoData
	}
	return results, nil
}
