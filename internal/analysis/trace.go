package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"

	"github.com/user/coco_analyzer_go/internal/ctxlog"
	"github.com/user/coco_analyzer_go/internal/parser"
)

// ErrShapeMismatch is returned when trace files of one group differ in shape.
var ErrShapeMismatch = errors.New("trace shape differs from first loaded trial")

// TraceOptions selects the per-generation variable dumps of one group.
type TraceOptions struct {
	Directory  string
	Group      string
	TrialCount int
	Divisor    float64 // defaults to TrialCount when zero
}

// TraceResult is the elementwise mean of a group's trace files.
type TraceResult struct {
	Group   string
	Data    *mat.Dense // rows are generations, columns are variables
	Loaded  []int
	Missing []int
}

// AggregateTrace sums every column of the group's trial files and divides by
// the divisor. Missing files are skipped.
func AggregateTrace(ctx context.Context, fsys afero.Fs, opts TraceOptions) (*TraceResult, error) {
	if opts.TrialCount <= 0 {
		return nil, fmt.Errorf("%w: trial count must be positive, got %d", ErrInvalidOptions, opts.TrialCount)
	}
	divisor := opts.Divisor
	if divisor == 0 {
		divisor = float64(opts.TrialCount)
	}

	logger := ctxlog.Logger(ctx).With("group", opts.Group)
	res := &TraceResult{Group: opts.Group}
	var sum *mat.Dense

	for i := 0; i < opts.TrialCount; i++ {
		path := parser.TrialPath(opts.Directory, opts.Group, i)
		table, err := parser.LoadTrialTable(fsys, path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("trace file not found, skipping", "path", path)
			res.Missing = append(res.Missing, i)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("trace %q: %w", opts.Group, err)
		}

		if sum == nil {
			sum = mat.DenseCopyOf(table.Data)
		} else {
			r0, c0 := sum.Dims()
			r, c := table.Data.Dims()
			if r != r0 || c != c0 {
				return nil, fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrShapeMismatch, path, r, c, r0, c0)
			}
			sum.Add(sum, table.Data)
		}
		res.Loaded = append(res.Loaded, i)
	}

	if sum == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoTrialData, opts.Group)
	}
	sum.Scale(1/divisor, sum)
	res.Data = sum
	return res, nil
}
