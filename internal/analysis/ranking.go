package analysis

import (
	"math"
	"sort"
)

const (
	// DefaultReferenceX is where curves are compared for legend order.
	DefaultReferenceX = 4.0
	// DefaultReachThreshold is the target hit rate counted as solved.
	DefaultReachThreshold = 1.0
)

// Unreached is returned by ReachX when the threshold is never met.
// It sorts after every finite x.
var Unreached = math.Inf(1)

// IsUnreached reports whether x is the Unreached sentinel.
func IsUnreached(x float64) bool {
	return math.IsInf(x, 1)
}

// ReachX returns the smallest x whose y is at least threshold, or Unreached.
// Rows are not assumed to be sorted by x.
func ReachX(x, y []float64, threshold float64) float64 {
	reach := Unreached
	for i := 0; i < len(x) && i < len(y); i++ {
		if y[i] >= threshold && x[i] < reach {
			reach = x[i]
		}
	}
	return reach
}

// ValueAt returns y at the x closest to ref. The first of equally close
// points wins. An empty series gives NaN.
func ValueAt(x, y []float64, ref float64) float64 {
	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < len(x) && i < len(y); i++ {
		if d := math.Abs(x[i] - ref); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return math.NaN()
	}
	return y[best]
}

// RankGroups orders groups for the legend: highest value at referenceX first,
// then earliest reach of threshold, then group name.
func RankGroups(series []GroupSeries, referenceX, threshold float64) []Ranking {
	rankings := make([]Ranking, len(series))
	for i, s := range series {
		rankings[i] = Ranking{
			Group:            s.Group,
			ValueAtReference: ValueAt(s.X, s.Y, referenceX),
			ReachX:           ReachX(s.X, s.Y, threshold),
		}
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		aNaN, bNaN := math.IsNaN(a.ValueAtReference), math.IsNaN(b.ValueAtReference)
		if aNaN != bNaN {
			return bNaN
		}
		if !aNaN && a.ValueAtReference != b.ValueAtReference {
			return a.ValueAtReference > b.ValueAtReference
		}
		if a.ReachX != b.ReachX {
			return a.ReachX < b.ReachX
		}
		return a.Group < b.Group
	})

	for i := range rankings {
		rankings[i].Rank = i
	}
	return rankings
}
