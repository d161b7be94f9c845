package analysis

import (
	"fmt"
	"path/filepath"
)

// TraceMethod is one search method of a trace sweep with its variants and
// the last generation shown per dimension.
type TraceMethod struct {
	Name     string
	Variants []string
	XMax     map[int]float64
}

// TraceTarget identifies one trace chart: a function, dimension, method and variant.
type TraceTarget struct {
	Function  int
	Dimension int
	Method    string
	Variant   string
	XMax      float64 // 0 when the method has no bound for this dimension
}

func (t TraceTarget) relDir() string {
	return filepath.Join(fmt.Sprintf("f%d", t.Function), fmt.Sprintf("%dd", t.Dimension), t.Method)
}

// Directory is {root}/f{function}/{dim}d/{method}.
func (t TraceTarget) Directory(root string) string {
	return filepath.Join(root, t.relDir())
}

// Group is the trial file prefix {dim}D-{variant}.
func (t TraceTarget) Group() string {
	return fmt.Sprintf("%dD-%s", t.Dimension, t.Variant)
}

// OutputPath is {root}/f{function}/{dim}d/{method}/{dim}D-{variant}.{format}.
func (t TraceTarget) OutputPath(root, format string) string {
	return filepath.Join(root, t.relDir(), t.Group()+"."+format)
}

// Title is the chart heading, e.g. "20D".
func (t TraceTarget) Title() string {
	return fmt.Sprintf("%dD", t.Dimension)
}

// SweepTargets enumerates functions x dimensions x methods x variants in that nesting order.
func SweepTargets(functions, dimensions []int, methods []TraceMethod) []TraceTarget {
	var targets []TraceTarget
	for _, f := range functions {
		for _, d := range dimensions {
			for _, m := range methods {
				for _, v := range m.Variants {
					targets = append(targets, TraceTarget{
						Function:  f,
						Dimension: d,
						Method:    m.Name,
						Variant:   v,
						XMax:      m.XMax[d],
					})
				}
			}
		}
	}
	return targets
}
