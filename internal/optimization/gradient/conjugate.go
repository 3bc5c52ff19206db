package gradient

import (
	"context"
	"math"

	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/optimization/linesearch"
)

// lineDescent minimizes along a search direction on every iteration. With
// conjugate set the direction blends the new gradient with the previous
// direction using the Fletcher-Reeves ratio β = |g|²/|g_prev|²; otherwise it
// is plain steepest descent.
func lineDescent(ctx context.Context, b *optimization.Base, trace *optimization.Trace, start optimization.Point, conjugate bool) (optimization.Point, optimization.Status, int, error) {
	f, eps := b.F(), b.Epsilon()
	rate := b.Settings().Rate
	limit := b.Settings().Iterations(gradientMaxIterations)

	curr := start
	step := math.NaN()
	var dir, prevGrad optimization.Point
	status, iterations := optimization.StatusIterationLimit, limit
	for i := 0; i < limit; i++ {
		if err := b.Interrupted(ctx); err != nil {
			return curr, status, i, err
		}

		prev := curr
		grad := b.Gradient(prev)
		if !grad.IsFinite() {
			trace.Logf("%d) Gradient undefined at %v", i, prev)
			status, iterations = optimization.StatusNumericFailure, i
			break
		}

		beta := 0.0
		if i == 0 || !conjugate {
			dir = grad.Scale(-rate)
		} else {
			if d := prevGrad.LengthSquared(); d > 0 {
				beta = grad.LengthSquared() / d
			}
			dir = grad.Scale(-rate).Add(dir.Scale(beta))
			if dir.Dot(grad) >= 0 {
				// not a descent direction any more, restart from the gradient
				beta = 0
				dir = grad.Scale(-rate)
			}
		}

		curr = linesearch.MinimizeAlong(f, dir, prev, eps, trace)
		step = curr.Distance(prev)
		prevGrad = grad

		trace.AddSegment(prev, curr)
		trace.AddPoint(prev, curr)
		if conjugate {
			trace.Logf("%d) Start = %v; End = %v; Gradient = %v; Beta = %g", i, prev, curr, grad, beta)
		} else {
			trace.Logf("%d) Start = %v; End = %v; Gradient = %v", i, prev, curr, grad)
		}

		if step < eps {
			status, iterations = optimization.StatusConverged, i+1
			break
		}
	}
	trace.Logf("Result: point = %v; last step = %g; iterations = %d", curr, step, iterations)

	return curr, status, iterations, nil
}

// Chain is the conjugate gradient method with Fletcher-Reeves updates.
type Chain struct {
	optimization.Base
}

// NewChain creates a conjugate gradient solver.
func NewChain(settings optimization.Settings) *Chain {
	return &Chain{Base: optimization.NewBase("chain-gradient", settings)}
}

// LogBatchSize implements optimization.Solver.
func (s *Chain) LogBatchSize() int {
	return 1
}

// Solve runs the conjugate gradient method from start[0].
func (s *Chain) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	trace, err := s.Begin(ctx, start)
	if err != nil {
		return nil, err
	}

	solution, status, iterations, err := lineDescent(ctx, &s.Base, trace, start[0], true)
	if err != nil {
		return nil, err
	}
	return s.Finish(trace, solution, status, iterations, s.LogBatchSize()), nil
}

// Fast is steepest descent where the step length is chosen by line search.
type Fast struct {
	optimization.Base
}

// NewFast creates a line-searched steepest descent solver.
func NewFast(settings optimization.Settings) *Fast {
	return &Fast{Base: optimization.NewBase("fast-gradient", settings)}
}

// LogBatchSize implements optimization.Solver.
func (s *Fast) LogBatchSize() int {
	return 1
}

// Solve runs line-searched steepest descent from start[0].
func (s *Fast) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	trace, err := s.Begin(ctx, start)
	if err != nil {
		return nil, err
	}

	solution, status, iterations, err := lineDescent(ctx, &s.Base, trace, start[0], false)
	if err != nil {
		return nil, err
	}
	return s.Finish(trace, solution, status, iterations, s.LogBatchSize()), nil
}
