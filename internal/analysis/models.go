package analysis

import "math"

// GroupSeries is the aggregated curve of one group.
type GroupSeries struct {
	Group       string
	X           []float64 // Independent column of the last loaded trial
	Y           []float64 // Sum of the value column over loaded trials, divided by the normalization divisor
	Loaded      []int     // Trial indices that were read
	Missing     []int     // Trial indices with no file
	TrialFinals []float64 // Last value-column entry per trial index, NaN when the trial is missing
}

// Len returns the number of points in the series.
func (s GroupSeries) Len() int {
	return len(s.Y)
}

// Terminal returns the last point with X <= xMax. ok is false when no point qualifies.
func (s GroupSeries) Terminal(xMax float64) (x, y float64, ok bool) {
	for i := len(s.X) - 1; i >= 0; i-- {
		if math.IsNaN(xMax) || s.X[i] <= xMax {
			return s.X[i], s.Y[i], true
		}
	}
	return 0, 0, false
}

// AggregationResults holds every series produced by one aggregation pass.
type AggregationResults struct {
	Series       []GroupSeries // In requested group order, duplicates collapsed
	EmptyGroups  []string      // Groups with no trial file at all
	FailedGroups []string      // Groups with unreadable or inconsistent trial files
	Warnings     []string
}

func NewAggregationResults() *AggregationResults {
	return &AggregationResults{
		Series:       make([]GroupSeries, 0),
		EmptyGroups:  make([]string, 0),
		FailedGroups: make([]string, 0),
		Warnings:     make([]string, 0),
	}
}

// Lookup returns the series for group.
func (r *AggregationResults) Lookup(group string) (GroupSeries, bool) {
	for _, s := range r.Series {
		if s.Group == group {
			return s, true
		}
	}
	return GroupSeries{}, false
}

// Groups returns the names of the aggregated groups in order.
func (r *AggregationResults) Groups() []string {
	names := make([]string, len(r.Series))
	for i, s := range r.Series {
		names[i] = s.Group
	}
	return names
}

// Ranking holds the legend ordering keys of one group.
type Ranking struct {
	Group            string
	ValueAtReference float64 // y at the x closest to the reference coordinate
	ReachX           float64 // smallest x with y >= threshold, or Unreached
	Rank             int     // 0 is the top legend slot
}
