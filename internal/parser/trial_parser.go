package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"
)

const maxLineSize = 4 * 1024 * 1024

var (
	// ErrMalformedTable is returned when a row cannot be read as floats or has the wrong width.
	ErrMalformedTable = errors.New("malformed trial table")
	// ErrEmptyTable is returned when a trial file contains no data rows.
	ErrEmptyTable = errors.New("trial table has no rows")
	// ErrMissingColumn is returned when a requested column is outside the table.
	ErrMissingColumn = errors.New("column out of range")
)

// TrialPath builds the conventional path {dir}/{group}-{index}.txt.
func TrialPath(dir, group string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d%s", group, index, TrialFileExt))
}

// TrialExists reports whether the trial file at path is present.
func TrialExists(fs afero.Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}

// LoadTrialTable opens path on fs and parses it as a whitespace-delimited table.
func LoadTrialTable(fs afero.Fs, path string) (*TrialTable, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trial file: %w", err)
	}
	defer f.Close()

	data, err := ParseTrialTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &TrialTable{Path: path, Data: data}, nil
}

// ParseTrialTable reads whitespace-delimited rows of floats.
// Blank lines are skipped. The first data row fixes the column count.
func ParseTrialTable(r io.Reader) (*mat.Dense, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		values []float64
		rows   int
		width  int
		lineNo int
	)

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if width == 0 {
			width = len(fields)
		} else if len(fields) != width {
			return nil, fmt.Errorf("%w: line %d has %d columns, expected %d", ErrMalformedTable, lineNo, len(fields), width)
		}

		for col, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %q is not a number", ErrMalformedTable, lineNo, col, field)
			}
			values = append(values, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trial data: %w", err)
	}

	if rows == 0 {
		return nil, ErrEmptyTable
	}
	return mat.NewDense(rows, width, values), nil
}
