// Package direct implements the derivative-free methods: cyclic coordinate
// descent (Gauss-Seidel), Powell's method, the Nelder-Mead simplex and a
// global scan.
package direct

import (
	"context"
	"math"

	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/optimization/linesearch"
)

// coordinateMaxIterations caps the sweeps of Gauss-Seidel and Powell.
const coordinateMaxIterations = 1024

var (
	axisX = optimization.Pt(1, 0)
	axisY = optimization.Pt(0, 1)
)

// sweepAxes returns the coordinate directions used on sweep i. Both are
// halved on every sweep so later sweeps take more local steps.
func sweepAxes(i int) (optimization.Point, optimization.Point) {
	s := math.Ldexp(1, -i)
	return axisX.Scale(s), axisY.Scale(s)
}

// coordinateDescent minimizes along X then Y on every sweep, optionally
// followed by a pattern move along a tenth of the sweep's net displacement.
// It stops once a sweep moves less than epsilon.
func coordinateDescent(ctx context.Context, b *optimization.Base, trace *optimization.Trace, start optimization.Point, pattern bool) (optimization.Point, optimization.Status, int, error) {
	f, eps := b.F(), b.Epsilon()
	limit := b.Settings().Iterations(coordinateMaxIterations)

	curr := start
	for i := 0; i < limit; i++ {
		if err := b.Interrupted(ctx); err != nil {
			return curr, optimization.StatusIterationLimit, i, err
		}

		prev := curr
		ax, ay := sweepAxes(i)
		trace.Logf("%d) Begin: x = %g; y = %g; step = %g", i, curr.X, curr.Y, ax.Length())

		next := linesearch.MinimizeAlong(f, ax, curr, eps, trace)
		trace.AddSegment(curr, next)
		curr = next
		trace.Logf("%d) Minimum on axis X: x = %g; y = %g", i, curr.X, curr.Y)

		next = linesearch.MinimizeAlong(f, ay, curr, eps, trace)
		trace.AddSegment(curr, next)
		curr = next
		trace.Logf("%d) Minimum on axis Y: x = %g; y = %g", i, curr.X, curr.Y)

		if pattern {
			trace.AddSegment(prev, curr)
			diagonal := curr.Sub(prev).Scale(0.1)
			next = linesearch.MinimizeAlong(f, diagonal, curr, eps, trace)
			trace.AddSegment(curr, next)
			curr = next
			trace.Logf("%d) Minimum on diagonal axis: x = %g; y = %g", i, curr.X, curr.Y)
		}

		if curr.Distance(prev) < eps {
			return curr, optimization.StatusConverged, i + 1, nil
		}
	}
	return curr, optimization.StatusIterationLimit, limit, nil
}

// GaussSeidel is cyclic coordinate descent with shrinking axes.
type GaussSeidel struct {
	optimization.Base
}

// NewGaussSeidel creates a Gauss-Seidel solver.
func NewGaussSeidel(settings optimization.Settings) *GaussSeidel {
	return &GaussSeidel{Base: optimization.NewBase("gauss-seidel", settings)}
}

// Solve runs coordinate descent from start[0].
func (s *GaussSeidel) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	trace, err := s.Begin(ctx, start)
	if err != nil {
		return nil, err
	}

	solution, status, iterations, err := coordinateDescent(ctx, &s.Base, trace, start[0], false)
	if err != nil {
		return nil, err
	}
	return s.Finish(trace, solution, status, iterations, s.LogBatchSize()), nil
}

// LogBatchSize implements optimization.Solver.
func (s *GaussSeidel) LogBatchSize() int {
	return 1
}

// Powell is coordinate descent followed by a pattern move along the
// direction of net progress on every sweep.
type Powell struct {
	optimization.Base
}

// NewPowell creates a Powell solver.
func NewPowell(settings optimization.Settings) *Powell {
	return &Powell{Base: optimization.NewBase("powell", settings)}
}

// Solve runs Powell's method from start[0].
func (s *Powell) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	trace, err := s.Begin(ctx, start)
	if err != nil {
		return nil, err
	}

	solution, status, iterations, err := coordinateDescent(ctx, &s.Base, trace, start[0], true)
	if err != nil {
		return nil, err
	}
	return s.Finish(trace, solution, status, iterations, s.LogBatchSize()), nil
}

// LogBatchSize implements optimization.Solver.
func (s *Powell) LogBatchSize() int {
	return 1
}
