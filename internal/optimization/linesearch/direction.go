package linesearch

import (
	"math"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// maxExpansions caps the doubling steps taken while bracketing, so a function
// unbounded below along the direction still terminates.
const maxExpansions = 64

// Bracket finds an interval on the line start + t·dir that contains a minimum
// of f. It tries start+dir, then start-dir if the first trial does not
// improve, and keeps stepping outward with doubled steps while the function
// decreases. Every trial point is recorded into trace.
//
// When neither trial improves on start the bracket is [start+dir, start-dir].
// A zero direction yields the degenerate bracket [start, start].
func Bracket(f optimization.Func, dir, start optimization.Point, trace *optimization.Trace) (from, to optimization.Point) {
	trace.AddPoint(start)
	if dir.IsZero() {
		return start, start
	}

	fs := f.At(start)
	next := start.Add(dir)
	trace.AddPoint(next)
	fn := f.At(next)

	if !optimization.Less(fn, fs) {
		dir = dir.Scale(-1)
		back := start.Add(dir)
		trace.AddPoint(back)
		fb := f.At(back)
		if !optimization.Less(fb, fs) {
			return next, back
		}
		next, fn = back, fb
	}

	prev, curr, fc := start, next, fn
	for i := 1; i <= maxExpansions; i++ {
		next = curr.Add(dir.Scale(math.Ldexp(1, i)))
		trace.AddPoint(next)
		fn = f.At(next)
		if !optimization.Less(fn, fc) {
			return prev, next
		}
		prev, curr, fc = curr, next, fn
	}
	return prev, curr
}

// MinimizeAlong minimizes f along dir from start: it brackets a minimum with
// Bracket and refines it with golden-section search to an absolute precision
// of eps. If no point of the bracket improves on start, start itself is
// returned so callers can detect zero displacement.
func MinimizeAlong(f optimization.Func, dir, start optimization.Point, eps float64, trace *optimization.Trace) optimization.Point {
	from, to := Bracket(f, dir, start, trace)
	width := from.Distance(to)
	if width == 0 || math.IsInf(width, 0) || math.IsNaN(width) {
		return start
	}

	search := Golden{
		F: func(a float64) float64 {
			return f.At(from.Lerp(to, a))
		},
		Tolerance: eps / width,
	}
	res, err := search.Solve(0, 1)
	if err != nil {
		return start
	}

	p := from.Lerp(to, res.X)
	if !optimization.Less(f.At(p), f.At(start)) {
		return start
	}
	trace.AddPoint(p)
	return p
}
