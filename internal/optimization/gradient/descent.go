// Package gradient implements the methods driven by the numerical gradient:
// fixed-rate steepest descent, line-searched steepest descent and the
// Fletcher-Reeves conjugate ("chain") gradient.
package gradient

import (
	"context"
	"math"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// gradientMaxIterations caps every gradient method.
const gradientMaxIterations = 4095

// sufficientDecrease is the Armijo fraction of the predicted decrease a step
// must achieve. At one half an accepted step never overshoots the minimum of
// a quadratic along the gradient.
const sufficientDecrease = 0.5

// Descent steps to current - rate·gradient on every iteration. A step that
// leaves the domain or does not decrease f enough is retried at half the
// rate, so every accepted iterate improves on the one before it.
type Descent struct {
	optimization.Base
}

// NewDescent creates a fixed-rate gradient descent solver.
func NewDescent(settings optimization.Settings) *Descent {
	return &Descent{Base: optimization.NewBase("gradient", settings)}
}

// LogBatchSize implements optimization.Solver.
func (s *Descent) LogBatchSize() int {
	return 1
}

// Solve runs gradient descent from start[0]. It stops as converged once no
// step of length EPSILON or more along the gradient decreases f.
func (s *Descent) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	trace, err := s.Begin(ctx, start)
	if err != nil {
		return nil, err
	}

	rate, eps := s.Settings().Rate, s.Epsilon()
	limit := s.Settings().Iterations(gradientMaxIterations)

	curr := start[0]
	fcurr := s.Eval(curr)
	step := math.NaN()
	status, iterations := optimization.StatusIterationLimit, limit
	for i := 0; i < limit; i++ {
		if err := s.Interrupted(ctx); err != nil {
			return nil, err
		}

		prev := curr
		grad := s.Gradient(prev)
		if !grad.IsFinite() {
			trace.Logf("%d) Gradient undefined at %v", i, prev)
			status, iterations = optimization.StatusNumericFailure, i
			break
		}

		next, fnext, r, ok := s.backtrack(prev, fcurr, grad, rate, eps)
		if !ok {
			status, iterations = optimization.StatusConverged, i
			break
		}
		curr, fcurr = next, fnext
		step = curr.Distance(prev)

		trace.AddSegment(prev, curr)
		trace.AddPoint(prev, curr)
		trace.Logf("%d) Point = %v; End = %v; Gradient = %v; Rate = %g", i, prev, curr, grad, r)
	}
	trace.Logf("Result: point = %v; last step = %g; iterations = %d", curr, step, iterations)

	return s.Finish(trace, curr, status, iterations, s.LogBatchSize()), nil
}

// backtrack halves the rate from its configured value until the step from p
// lands on a finite value that satisfies the sufficient decrease condition.
// It gives up once the step would be shorter than eps.
func (s *Descent) backtrack(p optimization.Point, fp float64, grad optimization.Point, rate, eps float64) (optimization.Point, float64, float64, bool) {
	norm := grad.LengthSquared()
	for r := rate; r*math.Sqrt(norm) >= eps; r /= 2 {
		next := p.Sub(grad.Scale(r))
		if !next.IsFinite() {
			continue
		}
		fnext := s.Eval(next)
		if math.IsInf(fnext, 0) {
			continue
		}
		if optimization.Less(fnext, fp-sufficientDecrease*r*norm) {
			return next, fnext, r, true
		}
	}
	return p, fp, 0, false
}
