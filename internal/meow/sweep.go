package meow

import (
	"math"
	"sort"
)

// epsilon guards against floating point drift putting an on-grid stop value
// just on the wrong side of the loop condition.
const sweepEpsilon = 1e-9

// axisValues enumerates one sweep axis: start, start+jump, ... up to and
// including stop when it lies exactly on the grid.
func axisValues(axis SweepAxis) []float64 {
	var values []float64
	if axis.Jump > 0 {
		for v := axis.Start; v <= axis.Stop+sweepEpsilon; v += axis.Jump {
			values = append(values, v)
		}
	} else {
		for v := axis.Start; v >= axis.Stop-sweepEpsilon; v += axis.Jump {
			values = append(values, v)
		}
	}
	return values
}

// AxisLength returns the number of values axisValues(axis) will produce,
// without materialising them: floor((stop-start)/jump) + 1.
func AxisLength(axis SweepAxis) int {
	return int(math.Floor((axis.Stop-axis.Start)/axis.Jump+sweepEpsilon)) + 1
}

// Assignment is one point in a sweep's cartesian product: a value for every
// declared axis.
type Assignment map[string]float64

// ExpandSweeps returns the deterministic, ordered cartesian product of every
// sweep axis declared on the pattern. A pattern with no sweep axes returns a
// single empty Assignment (the "no sweep" case collapses to exactly one job
// per event, per the Handler contract).
func ExpandSweeps(p *Pattern) []Assignment {
	if len(p.Sweep) == 0 {
		return []Assignment{{}}
	}

	// Stable axis ordering: sorted by name, so the same pattern always
	// expands to the same sequence of assignments.
	names := make([]string, 0, len(p.Sweep))
	for name := range p.Sweep {
		names = append(names, name)
	}
	sort.Strings(names)

	axisVals := make([][]float64, len(names))
	for i, name := range names {
		axisVals[i] = axisValues(p.Sweep[name])
	}

	var out []Assignment
	var rec func(i int, acc Assignment)
	rec = func(i int, acc Assignment) {
		if i == len(names) {
			cp := make(Assignment, len(acc))
			for k, v := range acc {
				cp[k] = v
			}
			out = append(out, cp)
			return
		}
		for _, v := range axisVals[i] {
			acc[names[i]] = v
			rec(i+1, acc)
		}
	}
	rec(0, Assignment{})
	return out
}
