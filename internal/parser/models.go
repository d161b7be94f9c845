package parser

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultXColumn holds the independent variable (evaluation budget or generation).
	DefaultXColumn = 0
	// DefaultValueColumn holds the value aggregated across trials.
	DefaultValueColumn = 1
	// TrialFileExt is appended to every trial file name.
	TrialFileExt = ".txt"
)

// TrialTable holds the numeric rows of one trial result file.
// Every row has the same number of columns.
type TrialTable struct {
	Path string
	Data *mat.Dense
}

// Rows returns the number of rows in the table.
func (t *TrialTable) Rows() int {
	r, _ := t.Data.Dims()
	return r
}

// Cols returns the number of columns in the table.
func (t *TrialTable) Cols() int {
	_, c := t.Data.Dims()
	return c
}

// Column returns a copy of column j.
func (t *TrialTable) Column(j int) ([]float64, error) {
	if j < 0 || j >= t.Cols() {
		return nil, fmt.Errorf("%w: column %d requested, %s has %d columns", ErrMissingColumn, j, t.Path, t.Cols())
	}
	return mat.Col(nil, j, t.Data), nil
}
