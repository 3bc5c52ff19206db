// Package linesearch implements the one-dimensional searches shared by the
// directional methods: golden-section search over a bounded interval and
// bracketing along a direction in the plane.
package linesearch

import (
	"math"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

const (
	// invPhi is 1/φ, the fraction of the bracket kept on every step.
	invPhi = 1 / math.Phi

	maxGoldenIterations = 256
)

// Golden minimizes a one-dimensional function over a bounded interval by
// golden-section search.
type Golden struct {
	// F is the function being minimized
	F func(float64) float64

	// Tolerance is the bracket width at which the search stops
	Tolerance float64
}

// Solve returns the minimizer of F on [lower, upper]. The X coordinate of the
// result is the location of the minimum, Y is the function value there; the
// best point evaluated wins, so an undefined midpoint never hides a finite
// neighbour. F is never evaluated outside the interval.
func (g *Golden) Solve(lower, upper float64) (optimization.Point, error) {
	const op = "Solve"

	if g.F == nil {
		return optimization.Point{}, optimization.WrapError(optimization.ErrNoObjective, "cannot search").
			WithComponent("golden").WithOperation(op)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return optimization.Point{}, optimization.InvalidArgumentf("malformed interval [%g, %g]", lower, upper).
			WithComponent("golden").WithOperation(op)
	}

	tol := g.Tolerance
	if tol <= 0 {
		tol = optimization.DefaultEpsilon
	}

	lo, hi := lower, upper
	x1 := hi - invPhi*(hi-lo)
	x2 := lo + invPhi*(hi-lo)
	f1, f2 := g.F(x1), g.F(x2)
	best := optimization.Point{X: x1, Y: f1}
	keep := func(x, fx float64) {
		if optimization.Less(fx, best.Y) {
			best = optimization.Point{X: x, Y: fx}
		}
	}
	keep(x2, f2)

	for i := 0; hi-lo >= tol && i < maxGoldenIterations; i++ {
		if optimization.Less(f2, f1) {
			// the minimum is right of x1
			lo = x1
			x1, f1 = x2, f2
			x2 = lo + invPhi*(hi-lo)
			f2 = g.F(x2)
			keep(x2, f2)
		} else {
			hi = x2
			x2, f2 = x1, f1
			x1 = hi - invPhi*(hi-lo)
			f1 = g.F(x1)
			keep(x1, f1)
		}
	}

	x := lo + (hi-lo)/2
	keep(x, g.F(x))
	return best, nil
}
